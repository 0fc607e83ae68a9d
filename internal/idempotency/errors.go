package idempotency

import "errors"

var ErrAlreadyClaimed = errors.New("idempotency token already claimed")
