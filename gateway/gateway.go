// Package gateway adapts the resolver to NATS. Clients publish announcement
// documents on per-client subjects; the gateway serialises them onto the
// single resolver thread and publishes the resulting per-client documents
// back. Transport framing, reconnects and delivery are NATS concerns; the
// resolver core never sees the connection.
package gateway

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go"
	"golang.org/x/time/rate"

	"github.com/c360/srgresolver/config"
	"github.com/c360/srgresolver/errors"
	"github.com/c360/srgresolver/server"
	"github.com/c360/srgresolver/subgraph"
)

// deregister is the control token accepted in place of a client id.
const deregister = "_deregister"

// Gateway connects one server instance to a NATS connection.
type Gateway struct {
	conn   *nats.Conn
	server *server.Server
	cfg    config.NATSConfig
	log    *slog.Logger

	// backpressure towards the single resolver thread; nil when disabled
	limiter *rate.Limiter

	inbox chan *nats.Msg
}

// New creates a gateway around an established connection.
func New(conn *nats.Conn, srv *server.Server, cfg config.NATSConfig, log *slog.Logger) *Gateway {
	if log == nil {
		log = slog.Default()
	}
	g := &Gateway{
		conn:   conn,
		server: srv,
		cfg:    cfg,
		log:    log,
		inbox:  make(chan *nats.Msg, 256),
	}
	if cfg.AnnounceRate > 0 {
		g.limiter = rate.NewLimiter(rate.Limit(cfg.AnnounceRate), max(cfg.AnnounceBurst, 1))
	}
	return g
}

// Connect dials NATS with the configured options.
func Connect(cfg config.NATSConfig) (*nats.Conn, error) {
	opts := []nats.Option{
		nats.Name(cfg.Name),
		nats.MaxReconnects(cfg.MaxReconnects),
		nats.ReconnectWait(cfg.ReconnectWait),
	}
	conn, err := nats.Connect(strings.Join(cfg.URLs, ","), opts...)
	if err != nil {
		return nil, errors.Wrap(err, "gateway", "Connect", "dial")
	}
	return conn, nil
}

// Run subscribes to the announcement subjects and processes messages until
// the context is cancelled. All resolver access happens on this goroutine;
// that is the concurrency boundary the resolver's single-thread contract
// requires.
func (g *Gateway) Run(ctx context.Context) error {
	subject := g.cfg.AnnounceSubject + ".*"
	sub, err := g.conn.ChanSubscribe(subject, g.inbox)
	if err != nil {
		return errors.Wrap(err, "gateway", "Run", "subscribe")
	}
	defer func() {
		if err := sub.Unsubscribe(); err != nil {
			g.log.Warn("unsubscribe failed", "error", err)
		}
	}()
	g.log.Info("gateway listening", "subject", subject)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case msg := <-g.inbox:
			g.handle(ctx, msg)
		}
	}
}

func (g *Gateway) handle(ctx context.Context, msg *nats.Msg) {
	if g.limiter != nil {
		if err := g.limiter.Wait(ctx); err != nil {
			return
		}
	}
	clientID := clientFromSubject(msg.Subject)
	if clientID == "" {
		g.log.Warn("announcement without client id", "subject", msg.Subject)
		return
	}

	if clientID == deregister {
		if err := g.server.DeregisterClient(string(msg.Data)); err != nil {
			g.log.Warn("deregister failed", "client", string(msg.Data), "error", err)
		}
		g.publishDocuments()
		return
	}

	doc, err := subgraph.UnmarshalDocument(msg.Data)
	if err != nil {
		g.log.Warn("bad announcement document", "client", clientID, "error", err)
		return
	}
	for _, sg := range doc.Subgraphs {
		if sg.ID == "" {
			// announcement ids are clientID:subgraphID; mint one so the
			// scheme stays injective for sloppy clients
			sg.ID = uuid.NewString()
		}
		if err := g.server.ProcessAnnouncement(sg, clientID); err != nil {
			g.log.Warn("announcement rejected", "client", clientID, "id", sg.ID, "error", err)
		}
	}

	g.publishDocuments()
}

func (g *Gateway) publishDocuments() {
	responses, err := g.server.GenerateResponses()
	if err != nil {
		g.log.Error("response generation failed", "error", err)
		return
	}
	for clientID, data := range responses {
		subject := fmt.Sprintf("%s.%s", g.cfg.RespondSubject, clientID)
		if err := g.conn.Publish(subject, data); err != nil {
			g.log.Warn("publish failed", "client", clientID, "error", err)
		}
	}
}

// clientFromSubject extracts the client id from the final subject token.
func clientFromSubject(subject string) string {
	i := strings.LastIndexByte(subject, '.')
	if i < 0 || i == len(subject)-1 {
		return ""
	}
	return subject[i+1:]
}
