package server

import (
	"fmt"
	"relay-im/proto"
	"strings"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// Router interprets inbound chunks: the first non-blank chunk of a session is
// its display name, everything after that is chat.
type Router struct {
	table *Table
	log   *logrus.Entry
}

func NewRouter(table *Table, log *logrus.Entry) *Router {
	return &Router{table: table, log: log}
}

func (r *Router) Route(handle uuid.UUID, chunk []byte) ([]proto.Msg, error) {
	s, ok := r.table.Get(handle)
	if !ok {
		return nil, fmt.Errorf("route %s: %w", handle, ErrUnknownSession)
	}
	if !s.registered {
		return r.register(s, chunk)
	}

	content := strings.TrimRight(string(chunk), "\r\n")
	if strings.TrimSpace(content) == "" {
		return nil, nil
	}
	r.log.Infof("%s", proto.ChatLine(s.name, content))
	return []proto.Msg{{Body: proto.ChatLine(s.name, content), Exclude: handle}}, nil
}

func (r *Router) register(s *Session, chunk []byte) ([]proto.Msg, error) {
	name := strings.TrimSpace(string(chunk))
	if name == "" {
		r.log.WithField("handle", s.handle).Debugf("blank registration ignored")
		return nil, nil
	}
	if err := r.table.SetName(s.handle, name); err != nil {
		return nil, err
	}
	r.log.WithField("handle", s.handle).Infof("%s", proto.JoinNotice(name))
	return []proto.Msg{{Body: proto.JoinNotice(name), Exclude: s.handle}}, nil
}
