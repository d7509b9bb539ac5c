package model

// Device is one registered second-factor key.
type Device struct {
	ID  uint32 `json:"id"`
	Key string `json:"key"`
}

type RecoveryStatus struct {
	Path      string `json:"path"`
	DeviceID  uint32 `json:"deviceId,omitempty"`
	Key       string `json:"key,omitempty"`
	UnblockAt uint64 `json:"unblockAt,omitempty"`
}

type DelegationStatus struct {
	Pending bool `json:"pending"`
	// Target is the address the successor deploys to.
	Target       string `json:"target,omitempty"`
	ForwardValue uint64 `json:"forwardValue,omitempty"`
	UnblockAt    uint64 `json:"unblockAt,omitempty"`
}

// DelaySeconds lists the configured time locks.
type DelaySeconds struct {
	Fast       uint64 `json:"fast"`
	Slow       uint64 `json:"slow"`
	Delegation uint64 `json:"delegation"`
}

// GuardStatus is the read-only view of an installed guard.
type GuardStatus struct {
	Owner     string `json:"owner"`
	Extension string `json:"extension"`
	Counter   uint64 `json:"counter"`
	Shape     string `json:"shape"`
	HashAlg   string `json:"hashAlg"`

	// Device-set shape.
	Service string   `json:"service,omitempty"`
	Devices []Device `json:"devices,omitempty"`
	// Certificate shape.
	Root string `json:"root,omitempty"`
	Seed string `json:"seed"`

	Recovery   RecoveryStatus   `json:"recovery"`
	Delegation DelegationStatus `json:"delegation"`
	Delays     DelaySeconds     `json:"delays"`
}

// InstallResult is returned by a successful install.
type InstallResult struct {
	Owner      string `json:"owner"`
	Extension  string `json:"extension"`
	Counter    uint64 `json:"counter"`
	RequestCID string `json:"requestCID,omitempty"`
}

// SubmitResult is returned for an accepted signed request.
type SubmitResult struct {
	Op      string   `json:"op"`
	Outcome string   `json:"outcome"`
	Counter uint64   `json:"counter"`
	Removed bool     `json:"removed"`
	Effects []string `json:"effects"`

	RequestCID  string `json:"requestCID,omitempty"`
	SnapshotCID string `json:"snapshotCID,omitempty"`
	ReceiptCID  string `json:"receiptCID,omitempty"`
	// Receipt holds the canonical receipt bytes (base64 in JSON).
	Receipt []byte `json:"receipt,omitempty"`

	// DispatchError is set when the request was committed but the account
	// failed to carry out its effects.
	DispatchError string `json:"dispatchError,omitempty"`
}

// FeeQuery describes a send-actions request to price.
type FeeQuery struct {
	// Message is the forwarded action list; ForwardBits is used when empty.
	Message     []byte `json:"message,omitempty"`
	ForwardBits uint64 `json:"forwardBits,omitempty"`
	Outputs     uint64 `json:"outputs"`
	Extended    uint64 `json:"extended"`
}

// FeeEstimate is the fee breakdown; Total is the value to attach.
type FeeEstimate struct {
	GuardCompute  uint64 `json:"guardCompute"`
	Forward       uint64 `json:"forward"`
	WalletCompute uint64 `json:"walletCompute"`
	Total         uint64 `json:"total"`
}

// HistoryEntry is one committed request of a guard.
type HistoryEntry struct {
	Op          string `json:"op"`
	Counter     uint64 `json:"counter"`
	Outcome     string `json:"outcome"`
	At          uint64 `json:"at"`
	RequestCID  string `json:"requestCID,omitempty"`
	SnapshotCID string `json:"snapshotCID,omitempty"`
	ReceiptCID  string `json:"receiptCID,omitempty"`
}
