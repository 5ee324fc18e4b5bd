package cluster

import "fmt"

// InsufficientCattleError means the herd is too small to cluster.
type InsufficientCattleError struct {
	Cattle int
}

func (e *InsufficientCattleError) Error() string {
	return fmt.Sprintf("need at least %d cattle for clustering, have %d", MinClusterCattle, e.Cattle)
}

type CattleNotFoundError struct {
	CattleID string
}

func (e *CattleNotFoundError) Error() string {
	return fmt.Sprintf("cattle %s not found", e.CattleID)
}
