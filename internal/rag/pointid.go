package rag

import "github.com/google/uuid"

// pointNamespace is a fixed, arbitrary namespace UUID for this system's
// point_id derivation (§4.9). Any stable constant works; this one has no
// meaning beyond being fixed across binary versions so replays keep
// producing the same point_id.
var pointNamespace = uuid.MustParse("b7e293dd-9a7b-4b3e-8f2b-9c6a7c9e9a21")

// PointID derives a collision-free point_id from (projectID, chunkID) via
// UUIDv5. Mixing projectID into the input (resolving spec's Open Question
// 1) means two projects that happen to share a collection and produce the
// same chunk.id never collide on the same point.
func PointID(projectID, chunkID string) string {
	return uuid.NewSHA1(pointNamespace, []byte(projectID+"#"+chunkID)).String()
}
