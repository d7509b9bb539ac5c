package credential

import (
	"fmt"
	"sort"
)

// Shape selects which trust anchors a store holds.
type Shape uint8

const (
	ShapeDevices     Shape = 1
	ShapeCertificate Shape = 2
)

func (s Shape) String() string {
	switch s {
	case ShapeDevices:
		return "devices"
	case ShapeCertificate:
		return "certificate"
	default:
		return fmt.Sprintf("shape(%d)", uint8(s))
	}
}

// Anchors is the verification capability every store shape provides.
type Anchors interface {
	Shape() Shape
	// VerifyPrimary checks the operator-side signature: the service key, or
	// the key embedded in a root-issued certificate that is still valid at now.
	VerifyPrimary(digest, sig []byte, cert *Certificate, now uint64) bool
	// VerifySecondary checks the user-side signature: the device registered at
	// deviceID, or the seed key when the shape has no devices.
	VerifySecondary(digest, sig []byte, deviceID uint32) bool
	// VerifySeed checks a signature by the seed key.
	VerifySeed(digest, sig []byte) bool
}

// DeviceSet is the device-registry shape.
type DeviceSet struct {
	Service PublicKey            `cbor:"1,keyasint"`
	Seed    PublicKey            `cbor:"2,keyasint"`
	Devices map[uint32]PublicKey `cbor:"3,keyasint,omitempty"`
}

var _ Anchors = (*DeviceSet)(nil)

func (d *DeviceSet) Shape() Shape { return ShapeDevices }

func (d *DeviceSet) VerifyPrimary(digest, sig []byte, _ *Certificate, _ uint64) bool {
	return Verify(d.Service, digest, sig)
}

func (d *DeviceSet) VerifySecondary(digest, sig []byte, deviceID uint32) bool {
	key, ok := d.Devices[deviceID]
	if !ok {
		// Still run a verification so an unknown id costs the same as a bad
		// signature.
		Verify(d.Seed, digest, sig)
		return false
	}
	return Verify(key, digest, sig)
}

func (d *DeviceSet) VerifySeed(digest, sig []byte) bool {
	return Verify(d.Seed, digest, sig)
}

// Device returns the key registered at id.
func (d *DeviceSet) Device(id uint32) (PublicKey, bool) {
	k, ok := d.Devices[id]
	return k, ok
}

// IDs returns the registered device ids in ascending order.
func (d *DeviceSet) IDs() []uint32 {
	ids := make([]uint32, 0, len(d.Devices))
	for id := range d.Devices {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// AddDevice registers key at id. Only id uniqueness is enforced.
func (d *DeviceSet) AddDevice(id uint32, key PublicKey) error {
	if _, ok := d.Devices[id]; ok {
		return fmt.Errorf("%w: %d", ErrDuplicateID, id)
	}
	if err := key.Validate(); err != nil {
		return err
	}
	if d.Devices == nil {
		d.Devices = make(map[uint32]PublicKey)
	}
	d.Devices[id] = key.Clone()
	return nil
}

// RemoveDevice drops the key registered at id.
func (d *DeviceSet) RemoveDevice(id uint32) error {
	if _, ok := d.Devices[id]; !ok {
		return fmt.Errorf("%w: %d", ErrUnknownID, id)
	}
	delete(d.Devices, id)
	return nil
}

// SetDevice installs or overwrites the key at id.
func (d *DeviceSet) SetDevice(id uint32, key PublicKey) error {
	if err := key.Validate(); err != nil {
		return err
	}
	if d.Devices == nil {
		d.Devices = make(map[uint32]PublicKey)
	}
	d.Devices[id] = key.Clone()
	return nil
}

func (d *DeviceSet) clone() *DeviceSet {
	out := &DeviceSet{Service: d.Service.Clone(), Seed: d.Seed.Clone()}
	if d.Devices != nil {
		out.Devices = make(map[uint32]PublicKey, len(d.Devices))
		for id, k := range d.Devices {
			out.Devices[id] = k.Clone()
		}
	}
	return out
}

// CertificateTrust is the root-certificate shape.
type CertificateTrust struct {
	Root PublicKey `cbor:"1,keyasint"`
	Seed PublicKey `cbor:"2,keyasint"`
}

var _ Anchors = (*CertificateTrust)(nil)

func (c *CertificateTrust) Shape() Shape { return ShapeCertificate }

func (c *CertificateTrust) VerifyPrimary(digest, sig []byte, cert *Certificate, now uint64) bool {
	if err := cert.Verify(c.Root, now); err != nil {
		return false
	}
	return Verify(cert.Key, digest, sig)
}

func (c *CertificateTrust) VerifySecondary(digest, sig []byte, _ uint32) bool {
	return Verify(c.Seed, digest, sig)
}

func (c *CertificateTrust) VerifySeed(digest, sig []byte) bool {
	return Verify(c.Seed, digest, sig)
}

// Store is the tagged credential variant persisted with a guard.
// Exactly one of Devices and Certificates is set.
type Store struct {
	HashAlg      HashAlg           `cbor:"1,keyasint,omitempty"`
	Devices      *DeviceSet        `cbor:"2,keyasint,omitempty"`
	Certificates *CertificateTrust `cbor:"3,keyasint,omitempty"`
}

// NewDeviceStore builds a device-set store.
func NewDeviceStore(service, seed PublicKey, devices map[uint32]PublicKey) (*Store, error) {
	ds := &DeviceSet{Service: service.Clone(), Seed: seed.Clone()}
	for _, id := range sortedIDs(devices) {
		if err := ds.AddDevice(id, devices[id]); err != nil {
			return nil, err
		}
	}
	s := &Store{HashAlg: DefaultHashAlg, Devices: ds}
	if err := s.Validate(); err != nil {
		return nil, err
	}
	return s, nil
}

// NewCertificateStore builds a certificate-trust store.
func NewCertificateStore(root, seed PublicKey) (*Store, error) {
	s := &Store{HashAlg: DefaultHashAlg, Certificates: &CertificateTrust{Root: root.Clone(), Seed: seed.Clone()}}
	if err := s.Validate(); err != nil {
		return nil, err
	}
	return s, nil
}

// Validate checks that exactly one shape is present and all keys parse.
func (s *Store) Validate() error {
	if s == nil {
		return ErrInvalidShape
	}
	if _, err := Digest(s.HashAlg, nil); err != nil {
		return err
	}
	switch {
	case s.Devices != nil && s.Certificates == nil:
		if err := s.Devices.Service.Validate(); err != nil {
			return fmt.Errorf("service key: %w", err)
		}
		if err := s.Devices.Seed.Validate(); err != nil {
			return fmt.Errorf("seed key: %w", err)
		}
		for _, id := range s.Devices.IDs() {
			if err := s.Devices.Devices[id].Validate(); err != nil {
				return fmt.Errorf("device %d: %w", id, err)
			}
		}
	case s.Certificates != nil && s.Devices == nil:
		if err := s.Certificates.Root.Validate(); err != nil {
			return fmt.Errorf("root key: %w", err)
		}
		if err := s.Certificates.Seed.Validate(); err != nil {
			return fmt.Errorf("seed key: %w", err)
		}
	default:
		return ErrInvalidShape
	}
	return nil
}

// Shape returns the selected shape, or 0 for an invalid store.
func (s *Store) Shape() Shape {
	switch {
	case s == nil:
		return 0
	case s.Devices != nil:
		return ShapeDevices
	case s.Certificates != nil:
		return ShapeCertificate
	default:
		return 0
	}
}

// Anchors returns the verification capability of the selected shape.
func (s *Store) Anchors() Anchors {
	switch s.Shape() {
	case ShapeDevices:
		return s.Devices
	case ShapeCertificate:
		return s.Certificates
	default:
		return nil
	}
}

// Digest hashes a signing message with the store's hash algorithm.
func (s *Store) Digest(message []byte) ([]byte, error) {
	return Digest(s.HashAlg, message)
}

// Clone returns a deep copy of s.
func (s *Store) Clone() *Store {
	if s == nil {
		return nil
	}
	out := &Store{HashAlg: s.HashAlg}
	if s.Devices != nil {
		out.Devices = s.Devices.clone()
	}
	if s.Certificates != nil {
		out.Certificates = &CertificateTrust{Root: s.Certificates.Root.Clone(), Seed: s.Certificates.Seed.Clone()}
	}
	return out
}

func sortedIDs(m map[uint32]PublicKey) []uint32 {
	ids := make([]uint32, 0, len(m))
	for id := range m {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}
