package agents

import (
	"fmt"
	"log"
	"os"
	"sort"
	"sync"
	"time"

	"github.com/daddyholnes/podplay-claude-sub001/pkg/models"
)

// Registry holds the agent variants and their runtime status.
type Registry struct {
	personas map[models.VariantID]*Persona
	status   map[models.VariantID]*models.AgentStatus
	mu       sync.RWMutex

	personaPath string
}

// NewRegistry creates a registry with the built-in variants, applying
// overrides from personaPath if the file exists.
func NewRegistry(personaPath string) (*Registry, error) {
	personas := defaultPersonas()

	if personaPath != "" {
		if err := loadPersonaOverrides(personaPath, personas); err != nil {
			if !os.IsNotExist(err) {
				return nil, err
			}
			log.Printf("[Agents] No persona file at %s, using built-in personas", personaPath)
		}
	}

	status := make(map[models.VariantID]*models.AgentStatus, len(personas))
	for id, p := range personas {
		status[id] = &models.AgentStatus{
			Variant:     id,
			DisplayName: p.DisplayName,
			State:       models.AgentStateIdle,
		}
	}

	return &Registry{
		personas:    personas,
		status:      status,
		personaPath: personaPath,
	}, nil
}

// Get returns the persona for a variant.
func (r *Registry) Get(variant models.VariantID) (*Persona, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	p, ok := r.personas[variant]
	if !ok {
		return nil, fmt.Errorf("unknown agent variant %q", variant)
	}
	return p, nil
}

// Has reports whether a variant exists.
func (r *Registry) Has(variant models.VariantID) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.personas[variant]
	return ok
}

// Variants returns all variant ids in stable order.
func (r *Registry) Variants() []models.VariantID {
	r.mu.RLock()
	defer r.mu.RUnlock()

	ids := make([]models.VariantID, 0, len(r.personas))
	for id := range r.personas {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// MarkBusy transitions a variant to busy and bumps its request count.
func (r *Registry) MarkBusy(variant models.VariantID) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if st, ok := r.status[variant]; ok {
		st.State = models.AgentStateBusy
		st.RequestCount++
		st.LastUsed = time.Now()
	}
}

// MarkIdle transitions a variant back to idle after a successful request.
func (r *Registry) MarkIdle(variant models.VariantID) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if st, ok := r.status[variant]; ok {
		st.State = models.AgentStateIdle
		st.LastError = ""
	}
}

// MarkError records a failed request for a variant. The variant stays usable;
// the error state is informational.
func (r *Registry) MarkError(variant models.VariantID, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if st, ok := r.status[variant]; ok {
		st.State = models.AgentStateError
		st.ErrorCount++
		if err != nil {
			st.LastError = err.Error()
		}
	}
}

// Statuses returns a snapshot of all agent statuses in stable order.
func (r *Registry) Statuses() []models.AgentStatus {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]models.AgentStatus, 0, len(r.status))
	for _, st := range r.status {
		out = append(out, *st)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Variant < out[j].Variant })
	return out
}

// Reload re-reads the persona file and swaps prompts in place. Status counters
// are preserved across reloads.
func (r *Registry) Reload() error {
	if r.personaPath == "" {
		return nil
	}

	personas := defaultPersonas()
	if err := loadPersonaOverrides(r.personaPath, personas); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	r.personas = personas
	for id, p := range personas {
		if st, ok := r.status[id]; ok {
			st.DisplayName = p.DisplayName
		}
	}

	log.Printf("[Agents] Reloaded personas from %s", r.personaPath)
	return nil
}
