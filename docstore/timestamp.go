package docstore

import (
	"time"

	"go.mongodb.org/mongo-driver/bson"
)

// nowMS is swappable in tests to pin store-side time.
var nowMS = func() int64 { return time.Now().UnixMilli() }

// resolveTimestamps returns a copy of doc with every ServerTimestamp sentinel
// replaced by the current store time. Nested documents are walked one map at
// a time; arrays are left alone (no sentinel ever lives inside one).
func resolveTimestamps(doc bson.M) bson.M {
	now := nowMS()
	out := make(bson.M, len(doc))
	for k, v := range doc {
		switch t := v.(type) {
		case serverTimestamp:
			out[k] = now
		case bson.M:
			out[k] = resolveTimestamps(t)
		case map[string]interface{}:
			out[k] = resolveTimestamps(bson.M(t))
		default:
			out[k] = v
		}
	}
	return out
}
