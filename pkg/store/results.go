package store

type TidyResult struct {
	RemovedCount int
	ChangedPaths []string
}
