package main

import (
	"encoding/hex"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/tonkeeper/2fa-extension/credential"
	"github.com/tonkeeper/2fa-extension/envelope"
)

type requestOptions struct {
	counter    uint64
	validUntil uint64
	validFor   time.Duration
	hashAlg    string

	primary, secondary string
	certFile           string
	deviceID           uint32

	messageHex, messageFile string
	mode                    uint8
	id                      uint32
	key                     string
	templateHex             string
	forwardValue            uint64

	out string
}

func newRequestCommand(g *globalOptions) *cobra.Command {
	o := &requestOptions{}
	cmd := &cobra.Command{
		Use:   "request <op>",
		Short: "Build and sign a guard request",
		Long: `Build and sign a guard request for one of the signed operations:
send-actions, add-device, remove-device, fast-recover, cancel-recovery,
slow-recover, delegate, cancel-delegation, remove-extension.

Device-set guards sign with --primary=<service key> and --secondary=<device key>
plus --device-id. Certificate guards add --cert. Seed-only operations
(slow-recover, and cancel-recovery by the seed) sign with --secondary alone;
fast-recover uses --primary with the seed key as --secondary.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			op, err := envelope.ParseOpCode(args[0])
			if err != nil {
				return err
			}
			if op == envelope.OpInstall {
				return fmt.Errorf("install is not a signed request; use the install command")
			}
			raw, err := o.build(g, op)
			if err != nil {
				return err
			}
			return writeOutput(cmd, o.out, raw)
		},
	}
	f := cmd.Flags()
	f.Uint64Var(&o.counter, "counter", 0, "request counter (the guard's current counter)")
	f.Uint64Var(&o.validUntil, "valid-until", 0, "expiry as unix seconds")
	f.DurationVar(&o.validFor, "valid-for", 10*time.Minute, "validity from now when --valid-until is unset")
	f.StringVar(&o.hashAlg, "hash-alg", string(credential.DefaultHashAlg), "digest algorithm of the guard")
	f.StringVar(&o.primary, "primary", "", "primary signer reference")
	f.StringVar(&o.secondary, "secondary", "", "secondary signer reference")
	f.StringVar(&o.certFile, "cert", "", "certificate file for certificate guards")
	f.Uint32Var(&o.deviceID, "device-id", 0, "device id of the secondary signer")
	f.StringVar(&o.messageHex, "message-hex", "", "send-actions: forwarded message as hex")
	f.StringVar(&o.messageFile, "message-file", "", "send-actions: forwarded message file")
	f.Uint8Var(&o.mode, "mode", 3, "send-actions: send mode")
	f.Uint32Var(&o.id, "id", 0, "device id for add-device, remove-device and recovery")
	f.StringVar(&o.key, "key", "", "device key for add-device and recovery (<alg>:<base64>)")
	f.StringVar(&o.templateHex, "template-hex", "", "delegate: successor template as hex")
	f.Uint64Var(&o.forwardValue, "forward-value", 0, "delegate: value attached to the successor deployment")
	f.StringVar(&o.out, "out", "", "write CBOR to this file instead of base64 to stdout")
	_ = cmd.MarkFlagRequired("counter")
	return cmd
}

func (o *requestOptions) payload(op envelope.OpCode) (any, error) {
	switch op {
	case envelope.OpSendActions:
		var msg []byte
		var err error
		switch {
		case o.messageFile != "":
			msg, err = os.ReadFile(o.messageFile)
		case o.messageHex != "":
			msg, err = hex.DecodeString(o.messageHex)
		default:
			err = fmt.Errorf("send-actions needs --message-hex or --message-file")
		}
		if err != nil {
			return nil, err
		}
		return envelope.SendActions{Message: msg, Mode: o.mode}, nil
	case envelope.OpAddDevice, envelope.OpFastRecover, envelope.OpSlowRecover:
		key, err := credential.ParsePublicKey(o.key)
		if err != nil {
			return nil, fmt.Errorf("--key: %w", err)
		}
		if op == envelope.OpAddDevice {
			return envelope.AddDevice{ID: o.id, Key: key}, nil
		}
		return envelope.Recover{ID: o.id, Key: key}, nil
	case envelope.OpRemoveDevice:
		return envelope.RemoveDevice{ID: o.id}, nil
	case envelope.OpDelegate:
		tmpl, err := hex.DecodeString(o.templateHex)
		if err != nil || len(tmpl) == 0 {
			return nil, fmt.Errorf("delegate needs a non-empty --template-hex")
		}
		return envelope.Delegate{Template: tmpl, ForwardValue: o.forwardValue}, nil
	default:
		return nil, nil
	}
}

func (o *requestOptions) build(g *globalOptions, op envelope.OpCode) ([]byte, error) {
	payload, err := o.payload(op)
	if err != nil {
		return nil, err
	}
	ks, err := g.keyStore()
	if err != nil {
		return nil, err
	}
	c := envelope.Credentials{DeviceID: o.deviceID}
	if c.Primary, err = resolveSigner(ks, o.primary); err != nil {
		return nil, fmt.Errorf("--primary: %w", err)
	}
	if c.Secondary, err = resolveSigner(ks, o.secondary); err != nil {
		return nil, fmt.Errorf("--secondary: %w", err)
	}
	if o.certFile != "" {
		b, err := os.ReadFile(o.certFile)
		if err != nil {
			return nil, err
		}
		b, err = decodeInput(b, func(b []byte) bool {
			return envelope.DecodePayload(b, new(credential.Certificate)) == nil
		})
		if err != nil {
			return nil, fmt.Errorf("--cert: %w", err)
		}
		c.Certificate = new(credential.Certificate)
		if err := envelope.DecodePayload(b, c.Certificate); err != nil {
			return nil, fmt.Errorf("--cert: %w", err)
		}
	}
	validUntil := o.validUntil
	if validUntil == 0 {
		validUntil = uint64(time.Now().Add(o.validFor).Unix())
	}
	env, err := envelope.Build(op, o.counter, validUntil, payload, credential.HashAlg(o.hashAlg), c)
	if err != nil {
		return nil, err
	}
	return env.Marshal()
}
