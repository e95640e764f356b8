package oracle

import (
	"fmt"
	"math/rand/v2"

	"flight-oracles/queues"
)

// StatusPolicy decides the status code an oracle reports for a request.
type StatusPolicy func(req *queues.StatusRequest) StatusCode

// FixedPolicy always reports code.
func FixedPolicy(code StatusCode) StatusPolicy {
	return func(*queues.StatusRequest) StatusCode { return code }
}

// RandomPolicy samples uniformly from the supported status codes.
func RandomPolicy() StatusPolicy {
	return func(*queues.StatusRequest) StatusCode {
		return statusCodes[rand.IntN(len(statusCodes))]
	}
}

// NewPolicy builds a policy by name ("fixed" or "random").
func NewPolicy(name string, fixed uint8) (StatusPolicy, error) {
	switch name {
	case "fixed", "":
		code, err := ParseStatusCode(fixed)
		if err != nil {
			return nil, err
		}
		return FixedPolicy(code), nil
	case "random":
		return RandomPolicy(), nil
	}
	return nil, fmt.Errorf("unknown status policy %q", name)
}
