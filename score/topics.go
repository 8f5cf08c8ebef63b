package score

// topicKeywords defines the fixed keyword-category membership used for
// topic tagging. A text is tagged with every category whose keyword list
// intersects its tokens.
var topicKeywords = map[string][]string{
	"work": {
		"work", "job", "office", "meeting", "project", "deadline",
		"boss", "colleague", "client", "interview", "career", "salary",
		"promotion", "hire", "team", "manager",
	},
	"technology": {
		"computer", "software", "code", "programming", "app", "phone",
		"laptop", "internet", "website", "tech", "data", "server",
		"bug", "update", "install", "device",
	},
	"personal": {
		"family", "friend", "home", "health", "doctor", "birthday",
		"wedding", "kids", "parents", "sister", "brother", "mom",
		"dad", "relationship", "feeling", "life",
	},
	"education": {
		"school", "class", "study", "exam", "homework", "college",
		"university", "degree", "course", "teacher", "professor",
		"student", "learn", "lecture", "grade",
	},
	"entertainment": {
		"movie", "music", "game", "show", "concert", "party", "watch",
		"play", "band", "album", "series", "episode", "festival",
		"ticket", "fun",
	},
	"travel": {
		"trip", "flight", "travel", "vacation", "hotel", "airport",
		"visit", "drive", "road", "beach", "city", "country",
		"passport", "booking", "tour",
	},
	"communication": {
		"call", "text", "email", "message", "reply", "send", "phone",
		"chat", "contact", "respond", "voicemail", "write",
	},
}

// Topics extracts the set of topic tags detected in text.
func Topics(text string) map[string]struct{} {
	tokens := TokenSet(text)
	if len(tokens) == 0 {
		return nil
	}

	tags := make(map[string]struct{})
	for category, keywords := range topicKeywords {
		for _, kw := range keywords {
			if _, ok := tokens[kw]; ok {
				tags[category] = struct{}{}
				break
			}
		}
	}
	return tags
}

// TopicOverlap scores topic similarity between two texts as the Jaccard
// similarity of their topic-tag sets. Returns 0 when either side has no
// detected topic.
func TopicOverlap(a, b string) float64 {
	return Jaccard(Topics(a), Topics(b))
}
