// Package events broadcasts committed grievance changes to NATS subscribers and
// websocket clients.
package events

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/nats-io/nats.go"

	"civicdesk/internal/domain/grievance"
	"civicdesk/internal/errs"
	"civicdesk/internal/ports"
)

// DefaultSubjectPrefix yields subjects such as "grievances.created".
const DefaultSubjectPrefix = "grievances"

// natsConn is the part of *nats.Conn the publisher needs.
type natsConn interface {
	Publish(subject string, data []byte) error
}

type NATSPublisher struct {
	conn   natsConn
	prefix string
}

var _ ports.EventPublisher = (*NATSPublisher)(nil)

// ConnectNATS dials url with a client name. Reconnects are left to the nats client.
func ConnectNATS(url string, name string) (*nats.Conn, error) {
	url = strings.TrimSpace(url)
	if url == "" {
		return nil, errors.New("nats url is required")
	}
	conn, err := nats.Connect(url,
		nats.Name(name),
		nats.Timeout(5*time.Second),
		nats.MaxReconnects(-1),
	)
	if err != nil {
		return nil, errs.Wrapf(err, "nats connect %s", url)
	}
	return conn, nil
}

func NewNATSPublisher(conn natsConn, prefix string) *NATSPublisher {
	prefix = strings.Trim(strings.TrimSpace(prefix), ".")
	if prefix == "" {
		prefix = DefaultSubjectPrefix
	}
	return &NATSPublisher{conn: conn, prefix: prefix}
}

func Subject(prefix string, action grievance.EventAction) string {
	return prefix + "." + string(action)
}

func (p *NATSPublisher) Publish(_ context.Context, event ports.GrievanceEvent) error {
	data, err := json.Marshal(event)
	if err != nil {
		return errs.Wrap(err, "encode grievance event")
	}
	subject := Subject(p.prefix, event.Event.Action)
	if err := p.conn.Publish(subject, data); err != nil {
		return errs.Wrapf(err, "nats publish %s", subject)
	}
	return nil
}
