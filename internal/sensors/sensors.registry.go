package sensors

import (
	"fmt"
	"strings"
	"sync"
)

var slugReplacer = strings.NewReplacer("ä", "a", "ö", "o", "ü", "u", "ß", "ss", "é", "e", "è", "e", "á", "a", "à", "a")

// Slugify turns a display name into an entity id fragment
func Slugify(name string) string {
	name = slugReplacer.Replace(strings.ToLower(strings.TrimSpace(name)))
	var b strings.Builder
	underscore := false
	for _, r := range name {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
			underscore = false
			continue
		}
		if !underscore && b.Len() > 0 {
			b.WriteByte('_')
			underscore = true
		}
	}
	slug := strings.TrimSuffix(b.String(), "_")
	if slug == "" {
		return "energy_tracker"
	}
	return slug
}

// EntityRegistry hands out entity ids. An id stays bound to its unique id
// until released, so renaming a device does not move its entities.
type EntityRegistry struct {
	mu       sync.Mutex
	byUnique map[string]string
	taken    map[string]string
}

func NewEntityRegistry() *EntityRegistry {
	return &EntityRegistry{
		byUnique: make(map[string]string),
		taken:    make(map[string]string),
	}
}

// Assign returns the entity id for uniqueID, allocating base, base_2, ... on first use
func (r *EntityRegistry) Assign(uniqueID, base string) string {
	r.mu.Lock()
	defer r.mu.Unlock()
	if id, ok := r.byUnique[uniqueID]; ok {
		return id
	}
	candidate := base
	for n := 2; ; n++ {
		if _, used := r.taken[candidate]; !used {
			break
		}
		candidate = fmt.Sprintf("%s_%d", base, n)
	}
	r.byUnique[uniqueID] = candidate
	r.taken[candidate] = uniqueID
	return candidate
}

// Release frees the entity id of uniqueID
func (r *EntityRegistry) Release(uniqueID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if id, ok := r.byUnique[uniqueID]; ok {
		delete(r.taken, id)
		delete(r.byUnique, uniqueID)
	}
}

// Lookup returns the entity id bound to uniqueID
func (r *EntityRegistry) Lookup(uniqueID string) (string, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	id, ok := r.byUnique[uniqueID]
	return id, ok
}
