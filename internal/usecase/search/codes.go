package search

// Stable error codes attached to log records.
const (
	CodePagesQuery    = "M6THI27"
	CodeStatsQuery    = "M7THI27"
	CodeFilter        = "FKJ37ZZ"
	CodeNormalize     = "FKJ37ZU"
	CodeNormalizeDoc  = "FKJ37ZD"
	CodeContractQuery = "S5PJASQ"
	CodeSimilarQuery  = "SIM4QX1"
)
