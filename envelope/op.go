package envelope

import (
	"fmt"
	"strconv"
	"strings"
)

// OpCode identifies a guard operation on the wire.
type OpCode uint32

const (
	OpInstall          OpCode = 125
	OpSendActions      OpCode = 130
	OpAddDevice        OpCode = 131
	OpRemoveDevice     OpCode = 132
	OpFastRecover      OpCode = 133
	OpCancelRecovery   OpCode = 134
	OpSlowRecover      OpCode = 135
	OpDelegate         OpCode = 136
	OpCancelDelegation OpCode = 137
	OpRemoveExtension  OpCode = 138
)

var opNames = map[OpCode]string{
	OpInstall:          "install",
	OpSendActions:      "send-actions",
	OpAddDevice:        "add-device",
	OpRemoveDevice:     "remove-device",
	OpFastRecover:      "fast-recover",
	OpCancelRecovery:   "cancel-recovery",
	OpSlowRecover:      "slow-recover",
	OpDelegate:         "delegate",
	OpCancelDelegation: "cancel-delegation",
	OpRemoveExtension:  "remove-extension",
}

// SignedOps lists the operations submitted as signed envelopes, in op-code order.
var SignedOps = []OpCode{
	OpSendActions,
	OpAddDevice,
	OpRemoveDevice,
	OpFastRecover,
	OpCancelRecovery,
	OpSlowRecover,
	OpDelegate,
	OpCancelDelegation,
	OpRemoveExtension,
}

func (o OpCode) String() string {
	if n, ok := opNames[o]; ok {
		return n
	}
	return fmt.Sprintf("op(%d)", uint32(o))
}

// Known reports whether o is a defined operation.
func (o OpCode) Known() bool {
	_, ok := opNames[o]
	return ok
}

// ParseOpCode accepts an operation name ("send-actions") or its decimal code.
func ParseOpCode(s string) (OpCode, error) {
	s = strings.TrimSpace(strings.ToLower(s))
	for op, name := range opNames {
		if name == s {
			return op, nil
		}
	}
	if n, err := strconv.ParseUint(s, 10, 32); err == nil && OpCode(n).Known() {
		return OpCode(n), nil
	}
	return 0, fmt.Errorf("%w: %q", ErrUnknownOp, s)
}
