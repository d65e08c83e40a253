package event

import (
	"context"

	pkgkafka "github.com/Noobiez16/SubliGraphic/pkg/kafka"
)

// Discard drops every event. Used when no brokers are configured.
type Discard struct{}

func (Discard) Publish(context.Context, string, *pkgkafka.Event) error { return nil }
