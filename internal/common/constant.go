package common

// AccessTokenHeaderName is the gRPC metadata key used to carry the
// access token on inbound requests.
const AccessTokenHeaderName = "access_token"

// Report ID discriminators for full and match deliveries.
const (
	FullReportDiscriminator  = 0
	MatchReportDiscriminator = 1
)
