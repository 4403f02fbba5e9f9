// Package server accepts client announcements, drives the resolver to a
// fixed point and emits per-client incremental documents.
package server

import (
	"fmt"
	"sort"

	"github.com/c360/srgresolver/errors"
	"github.com/c360/srgresolver/subgraph"
)

// AnnouncementType classifies what a client announced, derived from the
// sections present in the subgraph.
type AnnouncementType int

// The announcement types.
const (
	Unknown AnnouncementType = iota
	// SRGRegistration announces base facts: output content only.
	SRGRegistration
	// Pattern announces a deductive rule: both input and output content.
	Pattern
	// Query announces a demand: input content only.
	Query
	// Deletion retracts a previous announcement: neither section present.
	Deletion
)

// String returns the announcement type name.
func (t AnnouncementType) String() string {
	switch t {
	case SRGRegistration:
		return "srg_registration"
	case Pattern:
		return "pattern"
	case Query:
		return "query"
	case Deletion:
		return "deletion"
	}
	return "unknown"
}

// Announcement is one classified client announcement. The id convention is
// clientID:subgraphID.
type Announcement struct {
	Type     AnnouncementType
	Data     *subgraph.Subgraph
	ClientID string
	ID       string
}

// NewAnnouncement classifies a subgraph and assigns the announcement id.
func NewAnnouncement(data *subgraph.Subgraph, clientID string) Announcement {
	a := Announcement{Data: data, ClientID: clientID}
	a.ID = clientID + ":" + data.ID

	hasInput := data.HasInput()
	hasOutput := data.HasOutput()
	switch {
	case !hasInput && hasOutput:
		a.Type = SRGRegistration
	case hasInput && hasOutput:
		a.Type = Pattern
	case hasInput && !hasOutput:
		a.Type = Query
	default:
		a.Type = Deletion
	}
	return a
}

// Repository stores announcements by id with a back-index from client id to
// announcement ids.
type Repository struct {
	store map[string]Announcement
	back  map[string]map[string]struct{}
}

// NewRepository creates an empty announcement repository.
func NewRepository() *Repository {
	return &Repository{
		store: make(map[string]Announcement),
		back:  make(map[string]map[string]struct{}),
	}
}

// Has reports whether the announcement id is stored.
func (r *Repository) Has(id string) bool {
	_, ok := r.store[id]
	return ok
}

// Add stores an announcement. Fails if the id is already registered.
func (r *Repository) Add(a Announcement) error {
	if r.Has(a.ID) {
		return errors.WrapInvalid(
			fmt.Errorf("%w: announcement %s", errors.ErrDuplicateID, a.ID),
			"server", "Add", "store")
	}
	r.store[a.ID] = a
	ids := r.back[a.ClientID]
	if ids == nil {
		ids = make(map[string]struct{})
		r.back[a.ClientID] = ids
	}
	ids[a.ID] = struct{}{}
	return nil
}

// Get returns a stored announcement.
func (r *Repository) Get(id string) (Announcement, error) {
	a, ok := r.store[id]
	if !ok {
		return Announcement{}, errors.WrapInvalid(
			fmt.Errorf("%w: %s", errors.ErrAnnouncementNotFound, id),
			"server", "Get", "lookup")
	}
	return a, nil
}

// Delete removes a stored announcement.
func (r *Repository) Delete(id string) error {
	a, ok := r.store[id]
	if !ok {
		return errors.WrapInvalid(
			fmt.Errorf("%w: %s", errors.ErrAnnouncementNotFound, id),
			"server", "Delete", "lookup")
	}
	if ids := r.back[a.ClientID]; ids != nil {
		delete(ids, id)
		if len(ids) == 0 {
			delete(r.back, a.ClientID)
		}
	}
	delete(r.store, id)
	return nil
}

// IDsByClient returns all announcement ids of a client in lexical order.
func (r *Repository) IDsByClient(clientID string) []string {
	ids := make([]string, 0, len(r.back[clientID]))
	for id := range r.back[clientID] {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}
