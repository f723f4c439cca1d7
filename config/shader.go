package config

import (
	"bytes"
	"errors"
	"fmt"
	"log"
	"os"
	"sync"
	"time"

	"github.com/pelletier/go-toml/v2"
)

// ShaderNamespace is the namespace the effect settings are stored under.
const ShaderNamespace = "shader"

// SaveDelay is how long edits settle before they are written.
const SaveDelay = time.Second

// Shader is the persisted effect selection and the last value of every
// parameter the user touched, keyed by effect then uniform name.
type Shader struct {
	Active string                        `toml:"active"`
	Params map[string]map[string]float64 `toml:"params"`
}

// DefaultShader selects crt, as a fresh install always has.
func DefaultShader() Shader {
	return Shader{Active: "crt", Params: make(map[string]map[string]float64)}
}

// MigrateTOML turns the boolean "active" of the first releases into an
// effect name and drops parameter values that are not numbers.
func (s *Shader) MigrateTOML(raw map[string]any) bool {
	migrated := false
	if b, ok := raw["active"].(bool); ok {
		raw["active"] = ""
		if b {
			raw["active"] = "crt"
		}
		migrated = true
	}
	params, ok := raw["params"].(map[string]any)
	if !ok {
		return migrated
	}
	for effect, v := range params {
		values, ok := v.(map[string]any)
		if !ok {
			delete(params, effect)
			continue
		}
		for name, value := range values {
			switch n := value.(type) {
			case float64:
			case int64:
				values[name] = float64(n)
			default:
				delete(values, name)
			}
		}
	}
	return migrated
}

func (s Shader) clone() Shader {
	out := Shader{Active: s.Active, Params: make(map[string]map[string]float64, len(s.Params))}
	for effect, values := range s.Params {
		m := make(map[string]float64, len(values))
		for k, v := range values {
			m[k] = v
		}
		out.Params[effect] = m
	}
	return out
}

// ShaderState is the live, process-wide copy of Shader. Edits are saved
// after SaveDelay of quiet; selection changes and resets are saved at once.
// It is safe for concurrent use.
type ShaderState struct {
	mu        sync.Mutex
	cfg       Shader
	store     *Store
	global    bool
	saver     *Debouncer
	lastSaved []byte
}

// LoadShader loads (or initializes) the shader namespace from store.
func LoadShader(store *Store, global bool) (*ShaderState, error) {
	cfg := DefaultShader()
	if err := store.LoadOrInit(&cfg, global, ShaderNamespace); err != nil {
		return nil, err
	}
	if cfg.Params == nil {
		cfg.Params = make(map[string]map[string]float64)
	}
	st := &ShaderState{cfg: cfg, store: store, global: global}
	st.saver = NewDebouncer(SaveDelay, func() {
		if err := st.Save(); err != nil {
			log.Printf("Config: failed to save %s: %v", ShaderNamespace, err)
		}
	})
	if data, err := store.Read(global, ShaderNamespace); err == nil {
		st.lastSaved = data
	}
	return st, nil
}

// Active returns the selected effect id.
func (st *ShaderState) Active() string {
	st.mu.Lock()
	defer st.mu.Unlock()
	return st.cfg.Active
}

// SetActive selects an effect and saves immediately.
func (st *ShaderState) SetActive(id string) error {
	st.mu.Lock()
	st.cfg.Active = id
	st.mu.Unlock()
	return st.Save()
}

// Value returns the stored value of a parameter.
func (st *ShaderState) Value(effect, name string) (float64, bool) {
	st.mu.Lock()
	defer st.mu.Unlock()
	v, ok := st.cfg.Params[effect][name]
	return v, ok
}

// ValueOr returns the stored value of a parameter or def.
func (st *ShaderState) ValueOr(effect, name string, def float64) float64 {
	if v, ok := st.Value(effect, name); ok {
		return v
	}
	return def
}

func (st *ShaderState) setLocked(effect, name string, v float64) {
	values, ok := st.cfg.Params[effect]
	if !ok {
		values = make(map[string]float64)
		st.cfg.Params[effect] = values
	}
	values[name] = v
}

// SetValue records an edit and schedules a save.
func (st *ShaderState) SetValue(effect, name string, v float64) {
	st.mu.Lock()
	st.setLocked(effect, name, v)
	st.mu.Unlock()
	st.saver.Trigger()
}

// Reset writes every default of one effect back and saves immediately.
func (st *ShaderState) Reset(effect string, defaults map[string]float64) error {
	st.mu.Lock()
	for name, v := range defaults {
		st.setLocked(effect, name, v)
	}
	st.mu.Unlock()
	return st.Save()
}

// Snapshot returns a deep copy of the current state.
func (st *ShaderState) Snapshot() Shader {
	st.mu.Lock()
	defer st.mu.Unlock()
	return st.cfg.clone()
}

// SavePending reports whether a debounced save is waiting.
func (st *ShaderState) SavePending() bool { return st.saver.Pending() }

// Save cancels any pending debounced save and writes now.
func (st *ShaderState) Save() error {
	st.saver.Stop()
	st.mu.Lock()
	defer st.mu.Unlock()
	data, err := toml.Marshal(st.cfg)
	if err != nil {
		return fmt.Errorf("failed to encode %s: %w", ShaderNamespace, err)
	}
	if _, err := st.store.write(st.global, ShaderNamespace, data); err != nil {
		return err
	}
	st.lastSaved = data
	return nil
}

// Path returns the backing file.
func (st *ShaderState) Path() (string, error) {
	return st.store.Path(st.global, ShaderNamespace)
}

// Reload re-reads the file after an external edit. Contents identical to
// the last save are ignored so our own writes do not echo back. It reports
// whether the state changed.
func (st *ShaderState) Reload() (bool, error) {
	data, err := st.store.Read(st.global, ShaderNamespace)
	if errors.Is(err, os.ErrNotExist) {
		return false, nil
	}
	if err != nil {
		return false, err
	}

	st.mu.Lock()
	defer st.mu.Unlock()
	if bytes.Equal(data, st.lastSaved) {
		return false, nil
	}
	cfg := Shader{}
	if _, err := decode(data, &cfg); err != nil {
		return false, fmt.Errorf("failed to parse %s: %w", ShaderNamespace, err)
	}
	if cfg.Params == nil {
		cfg.Params = make(map[string]map[string]float64)
	}
	st.cfg = cfg
	st.lastSaved = data
	return true, nil
}

// Close flushes a pending save.
func (st *ShaderState) Close() {
	st.saver.Flush()
}
