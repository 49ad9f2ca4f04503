package datasource

import "errors"

var (
	// ErrInvalidPartition indicates an Execute call for a partition the plan does not have.
	ErrInvalidPartition = errors.New("datasource: invalid partition")
	// ErrChildrenNotSupported indicates an attempt to attach children to a leaf plan.
	ErrChildrenNotSupported = errors.New("datasource: leaf plan does not accept children")
)
