package store

// Guest slot keys. Each guest owns two keys: the serialized entry list and
// the count of entries the guest has ever logged.
const (
	guestPrefix   = "guest:"
	entriesSuffix = ":entries"
	countSuffix   = ":count"
)

func entriesKey(guestID string) []byte {
	return buildKey(guestID, entriesSuffix)
}

func countKey(guestID string) []byte {
	return buildKey(guestID, countSuffix)
}

func buildKey(guestID, suffix string) []byte {
	buf := make([]byte, 0, len(guestPrefix)+len(guestID)+len(suffix))
	buf = append(buf, guestPrefix...)
	buf = append(buf, guestID...)
	buf = append(buf, suffix...)
	return buf
}

// Annotation keys hold allergen marks and reaction summaries for any session,
// guest or account, keyed by domain.Session.Key.
const annotationsPrefix = "annotations:"

func annotationsKey(sessionKey string) []byte {
	return []byte(annotationsPrefix + sessionKey)
}
