package zkp

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"

	"github.com/consensys/gnark-crypto/ecc"
	"github.com/consensys/gnark/backend/groth16"
	"github.com/consensys/gnark/constraint"
	"github.com/consensys/gnark/frontend"
	"github.com/consensys/gnark/frontend/cs/r1cs"
)

// CircuitKind names one of the signer's circuits.
type CircuitKind int

const (
	// Transfer is the two in, two out private transfer circuit.
	Transfer CircuitKind = iota

	// Reclaim is the two in, one change out reclaim circuit.
	Reclaim
)

// String returns the name used for the kind's key files.
func (k CircuitKind) String() string {
	switch k {
	case Transfer:
		return "transfer"
	case Reclaim:
		return "reclaim"
	default:
		return fmt.Sprintf("circuit(%d)", int(k))
	}
}

// circuit returns an empty circuit of the kind to compile.
func (k CircuitKind) circuit() (frontend.Circuit, error) {
	switch k {
	case Transfer:
		return &TransferCircuit{}, nil
	case Reclaim:
		return &ReclaimCircuit{}, nil
	default:
		return nil, fmt.Errorf("unknown circuit kind %d", int(k))
	}
}

// ErrInvalidProof is returned when a proof fails verification.
var ErrInvalidProof = errors.New("invalid proof")

// Config holds the engine settings.
type Config struct {
	// ProvingKeyDir holds <kind>_pk.bin and <kind>_vk.bin.  Keys are set
	// up and written there when missing.  An empty dir keeps freshly set
	// up keys in memory only.
	ProvingKeyDir string
}

// circuitKeys is a compiled circuit with its Groth16 keys.
type circuitKeys struct {
	cs constraint.ConstraintSystem
	pk groth16.ProvingKey
	vk groth16.VerifyingKey
}

// Engine compiles the circuits once, owns their keys and produces proofs.
// It is safe for concurrent use.
type Engine struct {
	cfg Config

	mtx  sync.Mutex
	keys map[CircuitKind]*circuitKeys
}

// NewEngine returns an engine that loads its keys lazily.
func NewEngine(cfg Config) *Engine {
	return &Engine{
		cfg:  cfg,
		keys: make(map[CircuitKind]*circuitKeys),
	}
}

// Load compiles every circuit and loads or sets up its keys.
func (e *Engine) Load() error {
	for _, kind := range []CircuitKind{Transfer, Reclaim} {
		if _, err := e.keysFor(kind); err != nil {
			return err
		}
	}
	return nil
}

// ProvingKeyPath returns the file the proving key of kind is read from.
func (e *Engine) ProvingKeyPath(kind CircuitKind) string {
	return filepath.Join(e.cfg.ProvingKeyDir, kind.String()+"_pk.bin")
}

// VerifyingKeyPath returns the file the verifying key of kind is read from.
func (e *Engine) VerifyingKeyPath(kind CircuitKind) string {
	return filepath.Join(e.cfg.ProvingKeyDir, kind.String()+"_vk.bin")
}

// keysFor returns the cached keys of kind, compiling the circuit the first
// time it is needed.
func (e *Engine) keysFor(kind CircuitKind) (*circuitKeys, error) {
	e.mtx.Lock()
	defer e.mtx.Unlock()

	if keys, ok := e.keys[kind]; ok {
		return keys, nil
	}

	circuit, err := kind.circuit()
	if err != nil {
		return nil, err
	}
	cs, err := frontend.Compile(ecc.BN254.ScalarField(), r1cs.NewBuilder, circuit)
	if err != nil {
		return nil, fmt.Errorf("unable to compile %v circuit: %w", kind, err)
	}
	log.Debugf("Compiled %v circuit with %d constraints", kind,
		cs.GetNbConstraints())

	keys := &circuitKeys{cs: cs}
	loaded, err := e.readKeys(kind, keys)
	if err != nil {
		return nil, err
	}
	if !loaded {
		log.Infof("Setting up %v proving key", kind)
		keys.pk, keys.vk, err = groth16.Setup(cs)
		if err != nil {
			return nil, fmt.Errorf("unable to set up %v circuit: %w", kind, err)
		}
		if err := e.writeKeys(kind, keys); err != nil {
			return nil, err
		}
	}

	e.keys[kind] = keys
	return keys, nil
}

// readKeys loads the key files of kind.  It returns false when either file
// does not exist.
func (e *Engine) readKeys(kind CircuitKind, keys *circuitKeys) (bool, error) {
	if e.cfg.ProvingKeyDir == "" {
		return false, nil
	}

	pk := groth16.NewProvingKey(ecc.BN254)
	vk := groth16.NewVerifyingKey(ecc.BN254)
	for _, f := range []struct {
		path string
		from io.ReaderFrom
	}{
		{e.ProvingKeyPath(kind), pk},
		{e.VerifyingKeyPath(kind), vk},
	} {
		err := readFrom(f.path, f.from)
		if errors.Is(err, os.ErrNotExist) {
			return false, nil
		}
		if err != nil {
			return false, fmt.Errorf("unable to read %s: %w", f.path, err)
		}
	}

	log.Infof("Loaded %v keys from %s", kind, e.cfg.ProvingKeyDir)
	keys.pk, keys.vk = pk, vk
	return true, nil
}

func readFrom(path string, from io.ReaderFrom) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()
	_, err = from.ReadFrom(bufio.NewReader(f))
	return err
}

// writeKeys persists freshly set up keys.
func (e *Engine) writeKeys(kind CircuitKind, keys *circuitKeys) error {
	if e.cfg.ProvingKeyDir == "" {
		return nil
	}
	if err := os.MkdirAll(e.cfg.ProvingKeyDir, 0700); err != nil {
		return err
	}

	for _, f := range []struct {
		path string
		to   io.WriterTo
	}{
		{e.ProvingKeyPath(kind), keys.pk},
		{e.VerifyingKeyPath(kind), keys.vk},
	} {
		if err := writeTo(f.path, f.to); err != nil {
			return fmt.Errorf("unable to write %s: %w", f.path, err)
		}
	}
	return nil
}

// writeTo writes through a temporary file so a crash never leaves a
// truncated key behind.
func writeTo(path string, to io.WriterTo) error {
	tmp := path + ".tmp"
	f, err := os.OpenFile(tmp, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0600)
	if err != nil {
		return err
	}
	w := bufio.NewWriter(f)
	if _, err := to.WriteTo(w); err != nil {
		f.Close()
		return err
	}
	if err := w.Flush(); err != nil {
		f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}

// prove returns the serialized proof that assignment satisfies kind.
func (e *Engine) prove(kind CircuitKind, assignment frontend.Circuit) ([]byte, error) {
	keys, err := e.keysFor(kind)
	if err != nil {
		return nil, err
	}

	witness, err := frontend.NewWitness(assignment, ecc.BN254.ScalarField())
	if err != nil {
		return nil, fmt.Errorf("unable to build %v witness: %w", kind, err)
	}
	proof, err := groth16.Prove(keys.cs, keys.pk, witness)
	if err != nil {
		return nil, fmt.Errorf("unable to prove %v: %w", kind, err)
	}

	var buf bytes.Buffer
	if _, err := proof.WriteTo(&buf); err != nil {
		return nil, fmt.Errorf("unable to serialize %v proof: %w", kind, err)
	}
	return buf.Bytes(), nil
}

// Verify checks a serialized proof against the public part of assignment.
func (e *Engine) Verify(kind CircuitKind, proofBytes []byte, public frontend.Circuit) error {
	keys, err := e.keysFor(kind)
	if err != nil {
		return err
	}

	proof := groth16.NewProof(ecc.BN254)
	if _, err := proof.ReadFrom(bytes.NewReader(proofBytes)); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidProof, err)
	}
	witness, err := frontend.NewWitness(public, ecc.BN254.ScalarField(),
		frontend.PublicOnly())
	if err != nil {
		return fmt.Errorf("unable to build %v public witness: %w", kind, err)
	}
	if err := groth16.Verify(proof, keys.vk, witness); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidProof, err)
	}
	return nil
}
