package server

import (
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/c360/srgresolver/attribute"
	"github.com/c360/srgresolver/errors"
	"github.com/c360/srgresolver/metric"
	"github.com/c360/srgresolver/resolver"
	"github.com/c360/srgresolver/subgraph"
)

// MaxFixedPointRounds caps pattern application per tick. Hitting the cap is
// not an error, the current SRG state is used.
const MaxFixedPointRounds = 10

// Server tracks announcements and per-client dataflow state around one
// resolver instance. It shares the resolver's single-thread contract: the
// caller serialises all calls.
type Server struct {
	manager       *resolver.Manager
	announcements *Repository

	// what runs on which client currently: client id to set of subgraph ids
	clientState map[string]map[string]bool

	log     *slog.Logger
	metrics *metric.Metrics
}

// New creates a server around a resolver.
func New(manager *resolver.Manager, log *slog.Logger, metrics *metric.Metrics) *Server {
	if log == nil {
		log = slog.Default()
	}
	return &Server{
		manager:       manager,
		announcements: NewRepository(),
		clientState:   make(map[string]map[string]bool),
		log:           log,
		metrics:       metrics,
	}
}

// Manager exposes the resolver for inspection and tests.
func (s *Server) Manager() *resolver.Manager { return s.manager }

// ProcessAnnouncement classifies a subgraph announcement and routes it to
// the resolver. Every announcement may produce new responses for any
// client; call GenerateDocuments afterwards.
func (s *Server) ProcessAnnouncement(data *subgraph.Subgraph, clientID string) error {
	a := NewAnnouncement(data, clientID)
	s.metrics.CountAnnouncement(a.Type.String())

	switch a.Type {
	case SRGRegistration:
		if err := s.manager.RegisterSRG(a.Data, clientID); err != nil {
			return err
		}
		return s.announcements.Add(a)

	case Pattern:
		s.manager.RegisterPattern(a.Data, clientID)
		return s.announcements.Add(a)

	case Query:
		s.manager.RegisterQuery(a.Data, clientID)
		return s.announcements.Add(a)

	case Deletion:
		return s.DeleteAnnouncement(a.ID, clientID, data.Name)
	}
	return errors.WrapInvalid(
		fmt.Errorf("unknown announcement type"), "server", "ProcessAnnouncement", "classify")
}

// DeleteAnnouncement removes a previously issued announcement. If the id is
// unknown the deletion falls back to a pattern delete by subgraph name,
// which covers clients that never announced under the id convention.
func (s *Server) DeleteAnnouncement(id, clientID, subgraphName string) error {
	s.log.Info("deleting announcement", "id", id, "name", subgraphName)

	if !s.announcements.Has(id) {
		return s.manager.DeletePattern(subgraphName, clientID)
	}

	a, err := s.announcements.Get(id)
	if err != nil {
		return err
	}
	switch a.Type {
	case SRGRegistration:
		err = s.manager.DeleteSRG(a.Data.ID)
	case Pattern:
		err = s.manager.DeletePattern(a.Data.Name, clientID)
	case Query:
		err = s.manager.DeleteQuery(a.Data.Name, clientID)
	default:
		err = errors.WrapInvalid(
			fmt.Errorf("cannot deregister announcement of type %s", a.Type),
			"server", "DeleteAnnouncement", "classify")
	}
	if err != nil {
		return err
	}
	return s.announcements.Delete(id)
}

// DeregisterClient removes a client and every announcement it made.
func (s *Server) DeregisterClient(clientID string) error {
	for _, id := range s.announcements.IDsByClient(clientID) {
		if err := s.DeleteAnnouncement(id, clientID, ""); err != nil {
			return err
		}
	}
	delete(s.clientState, clientID)
	return nil
}

// Document is the outbound unit for one client.
type Document = subgraph.Document

// GenerateDocuments drives pattern application to a fixed point, answers
// all queries and computes the per-client incremental documents.
func (s *Server) GenerateDocuments() map[string]*Document {
	start := time.Now()
	defer func() {
		s.metrics.ObserveTick(time.Since(start).Seconds())
	}()

	rounds := 0
	for i := 0; i < MaxFixedPointRounds; i++ {
		rounds++
		if s.manager.ApplyAllPatterns() == 0 {
			break
		}
	}
	s.metrics.ObserveFixedPoint(rounds)
	s.metrics.SetSRGSize(s.manager.SRG().Order(), s.manager.SRG().Size(), len(s.manager.RepositoryIDs()))

	responses := s.manager.ProcessQueries()
	return s.incrementalCompare(responses)
}

// incrementalCompare computes which subgraphs need to be started or stopped
// on which client, comparing the new desired state against the currently
// running one, and scrubs edge references that cross client boundaries.
func (s *Server) incrementalCompare(responses map[string][]*resolver.QueryResponse) map[string]*Document {
	docs := make(map[string]*Document)
	newState := make(map[string]map[string]bool)

	clientIDs := make([]string, 0, len(responses))
	for clientID := range responses {
		clientIDs = append(clientIDs, clientID)
	}
	sort.Strings(clientIDs)

	for _, clientID := range clientIDs {
		docs[clientID] = &Document{}
		state := make(map[string]bool)
		newState[clientID] = state

		for _, response := range responses[clientID] {
			for _, inst := range response.Graphs {
				id := inst.ID
				if state[id] {
					// already encountered on this run
					continue
				}
				if s.clientState[clientID][id] {
					// already running on the client, keeps running unsent
					state[id] = true
					continue
				}
				// documents carry copies so reference scrubbing never
				// touches the repository state
				docs[clientID].Subgraphs = append(docs[clientID].Subgraphs, inst.Subgraph.Clone())
				state[id] = true
			}
		}
	}

	// remove edge references to subgraphs running on other clients,
	// preserving the reference for the transport layer
	for _, clientID := range clientIDs {
		state := newState[clientID]
		for _, g := range docs[clientID].Subgraphs {
			g.Edges(func(e *subgraph.GraphEdge) bool {
				ref := e.Data.Ref
				if !e.Data.IsInput() || ref.IsZero() || state[ref.SubgraphID] {
					return true
				}
				s.log.Debug("removing remote edge reference",
					"subgraph", g.ID, "edge", e.Name,
					"remote", ref.SubgraphID+":"+ref.EdgeName)
				e.Data.Attrs.Set("remotePatternID", attribute.Text(ref.SubgraphID))
				e.Data.Attrs.Set("remoteEdgeName", attribute.Text(ref.EdgeName))
				e.Data.Ref = subgraph.EdgeRef{}
				return true
			})
		}
	}

	// everything running previously but absent from the new state gets a
	// deletion marker: an empty subgraph whose id names the instance
	prevClients := make([]string, 0, len(s.clientState))
	for clientID := range s.clientState {
		prevClients = append(prevClients, clientID)
	}
	sort.Strings(prevClients)

	for _, clientID := range prevClients {
		if docs[clientID] == nil {
			docs[clientID] = &Document{}
		}
		state := newState[clientID]
		prev := make([]string, 0, len(s.clientState[clientID]))
		for id := range s.clientState[clientID] {
			prev = append(prev, id)
		}
		sort.Strings(prev)
		for _, id := range prev {
			if state == nil || !state[id] {
				marker := subgraph.New(id, id)
				docs[clientID].Subgraphs = append(docs[clientID].Subgraphs, marker)
			}
		}
	}

	s.clientState = newState
	for _, clientID := range clientIDs {
		s.metrics.CountDocument(clientID)
	}
	return docs
}

// GenerateResponses renders the per-client documents to their JSON form.
func (s *Server) GenerateResponses() (map[string][]byte, error) {
	docs := s.GenerateDocuments()
	out := make(map[string][]byte, len(docs))
	for clientID, doc := range docs {
		data, err := subgraph.MarshalDocument(doc)
		if err != nil {
			return nil, errors.Wrap(err, "server", "GenerateResponses", "encode")
		}
		out[clientID] = data
	}
	return out, nil
}
