package kv

// Bucket layout. Event keys are dayId:paddedSequence so a cursor walks
// the log in chain order; everything else is keyed by day id or account
// id directly.
var (
	eventsBucket         = []byte("events")
	eventHashIndexBucket = []byte("event-hash-index")
	chainMetaBucket      = []byte("chain-meta")
	snapshotsBucket      = []byte("state-snapshots")
	statesBucket         = []byte("state-blobs")
	assignmentsBucket    = []byte("assignments")
	submissionsBucket    = []byte("submissions")
	nodeKeysBucket       = []byte("node-keys")
	heartbeatsBucket     = []byte("heartbeats")
	devicesBucket        = []byte("devices")
	lifecycleBucket      = []byte("day-lifecycle")
	balancesBucket       = []byte("balances")
	ledgerEntriesBucket  = []byte("ledger-entries")

	// chainHeadKey points chainMetaBucket at the key of the most recently
	// appended event.
	chainHeadKey = []byte("head")
	// lifecycleKey is the single row in lifecycleBucket.
	lifecycleKey = []byte("current")
)
