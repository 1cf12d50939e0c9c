package classify

// recoveryHints holds the fixed, kind-specific suggestions attached to each
// classified error. Advisory metadata only; nothing consumes them
// programmatically.
var recoveryHints = map[Kind][]string{
	KindConnection: {
		"check that the remote process is running",
		"verify network reachability to the service",
		"restart the dependent service if the problem persists",
	},
	KindTimeout: {
		"retry once the service is less loaded",
		"increase the operation timeout if this recurs",
	},
	KindValidation: {
		"check the request payload against the expected schema",
		"fix the invalid or missing fields before retrying",
	},
	KindAPI: {
		"check the service status page for outages",
		"inspect the response status code and body",
		"verify API credentials and request format",
	},
	KindParsing: {
		"inspect the raw response for truncation or corruption",
		"confirm both sides agree on the wire format version",
	},
	KindUnknown: {
		"inspect application logs around the failure time",
		"retry the operation once before escalating",
	},
}

// Hints returns a copy of the recovery suggestions for kind.
func Hints(kind Kind) []string {
	hints, ok := recoveryHints[kind]
	if !ok {
		hints = recoveryHints[KindUnknown]
	}
	out := make([]string, len(hints))
	copy(out, hints)
	return out
}
