package server

import (
	"relay-im/proto"

	"github.com/samber/lo"
	"github.com/sirupsen/logrus"
)

// Sink fans a message out to the session queues. Delivery is best effort:
// a full or retired queue loses that one delivery and nothing else.
type Sink struct {
	log     *logrus.Entry
	metrics *Metrics
}

func NewSink(log *logrus.Entry, metrics *Metrics) *Sink {
	return &Sink{log: log, metrics: metrics}
}

// Deliver enqueues msg for every target except msg.Exclude and returns how
// many targets accepted it.
func (k *Sink) Deliver(msg proto.Msg, targets []*Session) int {
	targets = lo.Filter(targets, func(s *Session, _ int) bool {
		return !msg.Excludes(s.handle)
	})
	delivered := 0
	for _, s := range targets {
		if !s.send(msg.Body) {
			k.log.WithField("handle", s.handle).Debugf("delivery dropped, outbound queue unavailable")
			k.metrics.dropped.Inc()
			continue
		}
		delivered++
	}
	k.metrics.delivered.Add(float64(delivered))
	return delivered
}
