package auth

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"golang.org/x/crypto/pbkdf2"

	"reelscraper/pkg/logger"
)

const (
	keySize        = 32
	kdfIterations  = 100000
	envelopeSchema = 1
)

// kdfSalt is fixed so the derived key is stable across process restarts.
// The secret itself carries the entropy; see ResolveSecret.
var kdfSalt = []byte("reelscraper.credential.store.v1")

// Errors
var (
	ErrMissingSecret  = errors.New("encryption requested but no secret configured")
	ErrDecryptFailed  = errors.New("failed to decrypt credentials: wrong secret")
	ErrCorruptFile    = errors.New("credential file is corrupt")
	ErrNoCiphertextIV = errors.New("encrypted envelope is missing iv or auth tag")
)

// Envelope is the on-disk shape of the credential file.
type Envelope struct {
	Encrypted bool   `json:"encrypted"`
	Data      string `json:"data"`
	IV        string `json:"iv,omitempty"`
	AuthTag   string `json:"authTag,omitempty"`
	Version   int    `json:"version"`
	StoredAt  int64  `json:"storedAt"`
}

// LoadResult is the outcome of a successful read. Expired credentials are
// still returned; the caller decides whether to use or refresh them.
type LoadResult struct {
	Credentials *Credentials
	Expired     bool
}

// FileStoreOptions configures a FileStore.
type FileStoreOptions struct {
	// Encrypt enables encryption at rest. Requires Secret.
	Encrypt bool
	// Secret is the value the AES key is derived from.
	Secret string
	// LockStaleAfter is the age past which a lock is presumed abandoned.
	LockStaleAfter time.Duration
	// LockWait bounds how long Save/Load wait for the lock.
	LockWait time.Duration
}

// FileStore persists a credential set as a JSON envelope, encrypted at rest
// with AES-GCM when enabled. Writes are atomic (temp file + rename) and
// serialized across processes by an exclusive lock file.
type FileStore struct {
	path string
	opts FileStoreOptions
	key  []byte
	log  logger.Logger
}

// NewFileStore creates a credential store at path. Requesting encryption
// without a secret is a configuration error and fails at construction.
func NewFileStore(path string, opts FileStoreOptions) (*FileStore, error) {
	if opts.Encrypt && opts.Secret == "" {
		return nil, ErrMissingSecret
	}

	dir := filepath.Dir(path)
	if dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0700); err != nil {
			return nil, fmt.Errorf("failed to create store directory: %w", err)
		}
	}

	s := &FileStore{
		path: path,
		opts: opts,
		log:  logger.GetLogger().WithField("component", "credential_store"),
	}
	if opts.Encrypt {
		s.key = pbkdf2.Key([]byte(opts.Secret), kdfSalt, kdfIterations, keySize, sha256.New)
	}
	return s, nil
}

// Save persists the credential set and returns the file path it wrote.
func (s *FileStore) Save(creds *Credentials) (string, error) {
	if err := creds.Validate(); err != nil {
		return "", err
	}

	lock := s.newLock()
	if err := lock.Acquire(); err != nil {
		return "", err
	}
	defer lock.Release()

	plaintext, err := json.Marshal(creds)
	if err != nil {
		return "", fmt.Errorf("failed to marshal credentials: %w", err)
	}

	env := Envelope{
		Encrypted: s.opts.Encrypt,
		Version:   envelopeSchema,
		StoredAt:  time.Now().UnixMilli(),
	}

	if s.opts.Encrypt {
		data, iv, tag, err := s.encrypt(plaintext)
		if err != nil {
			return "", err
		}
		env.Data = data
		env.IV = iv
		env.AuthTag = tag
	} else {
		env.Data = string(plaintext)
	}

	if err := s.writeAtomic(&env); err != nil {
		return "", err
	}

	s.log.DebugWithFields("credentials saved", map[string]interface{}{
		"path":      s.path,
		"encrypted": env.Encrypted,
	})
	return s.path, nil
}

// Load reads the stored credential set. Three outcomes: file absent returns
// (nil, nil) meaning not configured, which is not an error; file present but expired
// returns the stale credentials with Expired=true; file present and valid
// returns the credentials with Expired=false.
func (s *FileStore) Load() (*LoadResult, error) {
	lock := s.newLock()
	if err := lock.Acquire(); err != nil {
		return nil, err
	}
	defer lock.Release()

	raw, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read credential file: %w", err)
	}

	var env Envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorruptFile, err)
	}

	var plaintext []byte
	if env.Encrypted {
		if s.key == nil {
			return nil, ErrMissingSecret
		}
		plaintext, err = s.decrypt(env.Data, env.IV, env.AuthTag)
		if err != nil {
			return nil, err
		}
	} else {
		plaintext = []byte(env.Data)
	}

	var creds Credentials
	if err := json.Unmarshal(plaintext, &creds); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorruptFile, err)
	}

	return &LoadResult{
		Credentials: &creds,
		Expired:     creds.Expired(),
	}, nil
}

// Delete removes the credential file, reporting whether anything was removed.
func (s *FileStore) Delete() bool {
	return os.Remove(s.path) == nil
}

// Exists reports whether a credential file is present.
func (s *FileStore) Exists() bool {
	_, err := os.Stat(s.path)
	return err == nil
}

// Path returns the credential file location.
func (s *FileStore) Path() string { return s.path }

func (s *FileStore) newLock() *Lock {
	return NewLock(s.path, s.opts.LockStaleAfter, s.opts.LockWait)
}

func (s *FileStore) writeAtomic(env *Envelope) error {
	content, err := json.MarshalIndent(env, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal envelope: %w", err)
	}

	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, content, 0600); err != nil {
		return fmt.Errorf("failed to write credential file: %w", err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("failed to rename credential file: %w", err)
	}
	return nil
}

// encrypt seals the plaintext with AES-GCM under a per-save random IV and
// splits ciphertext and auth tag for the envelope.
func (s *FileStore) encrypt(plaintext []byte) (data, iv, tag string, err error) {
	block, err := aes.NewCipher(s.key)
	if err != nil {
		return "", "", "", err
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return "", "", "", err
	}

	nonce := make([]byte, gcm.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", "", "", fmt.Errorf("failed to generate iv: %w", err)
	}

	sealed := gcm.Seal(nil, nonce, plaintext, nil)
	tagStart := len(sealed) - gcm.Overhead()

	return base64.StdEncoding.EncodeToString(sealed[:tagStart]),
		base64.StdEncoding.EncodeToString(nonce),
		base64.StdEncoding.EncodeToString(sealed[tagStart:]),
		nil
}

// decrypt reassembles ciphertext+tag and opens it. A wrong key fails with
// ErrDecryptFailed, distinguishable from a corrupt envelope.
func (s *FileStore) decrypt(data, iv, tag string) ([]byte, error) {
	if iv == "" || tag == "" {
		return nil, ErrNoCiphertextIV
	}

	ciphertext, err := base64.StdEncoding.DecodeString(data)
	if err != nil {
		return nil, fmt.Errorf("%w: bad ciphertext encoding", ErrCorruptFile)
	}
	nonce, err := base64.StdEncoding.DecodeString(iv)
	if err != nil {
		return nil, fmt.Errorf("%w: bad iv encoding", ErrCorruptFile)
	}
	authTag, err := base64.StdEncoding.DecodeString(tag)
	if err != nil {
		return nil, fmt.Errorf("%w: bad auth tag encoding", ErrCorruptFile)
	}

	block, err := aes.NewCipher(s.key)
	if err != nil {
		return nil, err
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, err
	}
	if len(nonce) != gcm.NonceSize() {
		return nil, fmt.Errorf("%w: bad iv length", ErrCorruptFile)
	}

	plaintext, err := gcm.Open(nil, nonce, append(ciphertext, authTag...), nil)
	if err != nil {
		return nil, ErrDecryptFailed
	}
	return plaintext, nil
}
