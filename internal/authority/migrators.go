package authority

import "github.com/vumi/msgstore/internal/schema"

// Each entity gets its own migrator table so a future schema change to,
// say, Batch doesn't force a version bump on InboundMessage records. All
// five are empty today — modelVersion has never moved past 1 — but the
// shape is here so a forward migrator only has to be added to the
// relevant table.
var (
	batchMigrators           = schema.Migrators{Forward: map[int]schema.Step{}, Reverse: map[int]schema.Step{}}
	currentTagMigrators      = schema.Migrators{Forward: map[int]schema.Step{}, Reverse: map[int]schema.Step{}}
	inboundMessageMigrators  = schema.Migrators{Forward: map[int]schema.Step{}, Reverse: map[int]schema.Step{}}
	outboundMessageMigrators = schema.Migrators{Forward: map[int]schema.Step{}, Reverse: map[int]schema.Step{}}
	eventMigrators           = schema.Migrators{Forward: map[int]schema.Step{}, Reverse: map[int]schema.Step{}}
)
