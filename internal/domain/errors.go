package domain

import "errors"

// Sentinel errors, one group per component, mirroring the layered taxonomy:
// each layer maps inbound errors into its own kind while preserving the
// cause for logging (errors.Is / fmt.Errorf("%w", ...)).

// Selector / value-object construction errors, shared by every layer that
// parses a selector or SPIFFE ID string.
var (
	ErrEmptyKey        = errors.New("selector key cannot be empty")
	ErrEmptyValue      = errors.New("selector value cannot be empty")
	ErrInvalidFormat   = errors.New("invalid selector format")
	ErrSelectorInvalid = errors.New("selector validation failed")
	ErrInvalidTrustDomain = errors.New("trust domain cannot be nil or empty")
)

// Catalog.
var (
	ErrDuplicatedEntry  = errors.New("duplicated entry")
	ErrEntryNotFound    = errors.New("entry not found")
	ErrDuplicatedKey    = errors.New("duplicated key")
	ErrKeyNotFound      = errors.New("key not found")
	ErrInvalidPageSize  = errors.New("invalid page size")
)

// Key Store.
var (
	ErrUnsupportedKeyType = errors.New("unsupported key type")
	ErrFileRead           = errors.New("key file read error")
	ErrFileWrite          = errors.New("key file write error")
	ErrFileDelete         = errors.New("key file delete error")
	ErrConvertToUsize     = errors.New("signature length conversion error")
	ErrCryptoBackend      = errors.New("crypto backend error")
)

// Key Manager.
var (
	ErrCreatingNewKey     = errors.New("creating new key failed")
	ErrDeletingPrivateKey = errors.New("deleting private key failed")
	ErrDeletingPublicKey  = errors.New("deleting public key failed")
	ErrAddingPublicKey    = errors.New("adding public key failed")
	ErrNextJwtKeyMissing  = errors.New("next jwt key missing")
)

// SVID Factory.
var (
	ErrJSONSerializing     = errors.New("error serializing jwt-svid component to json")
	ErrSigningDigest       = errors.New("error signing digest")
	ErrUnimplementedKeyType = errors.New("unimplemented key type")
)

// JWT-SVID Validator.
var (
	ErrInvalidJoseEncoding       = errors.New("invalid jose encoding: expected 3 dot-separated parts")
	ErrInvalidBase64             = errors.New("invalid base64url encoding")
	ErrInvalidUTF8               = errors.New("invalid utf-8 encoding")
	ErrDeserializeJSON           = errors.New("error deserializing jwt-svid component")
	ErrInvalidAlgorithm          = errors.New("invalid or unsupported algorithm")
	ErrInvalidJWTType            = errors.New("invalid jwt_type, expected JWT")
	ErrExpiredToken              = errors.New("expired token")
	ErrInvalidAudience           = errors.New("invalid audience")
	ErrPublicKeyNotInTrustBundle = errors.New("public key not in trust bundle")
	ErrInvalidSignature          = errors.New("invalid signature")
)

// Node Attestor (PSAT).
var (
	ErrServiceAccountNotAllowed = errors.New("service account not allowed")
	ErrTokenReviewRequest       = errors.New("error building token review request")
	ErrK8sTokenReviewAPI        = errors.New("kubernetes token review api error")
	ErrInvalidToken             = errors.New("invalid projected service account token")
	ErrMissingField             = errors.New("missing required field")
	ErrGettingPodInfo           = errors.New("error getting pod info")
	ErrGettingNodeInfo          = errors.New("error getting node info")
)

// Workload Attestor.
var (
	ErrNoPIDCgroup               = errors.New("no cgroup found for pid")
	ErrExtractPodUIDAndContainer = errors.New("error extracting pod uid and container id")
	ErrListingPods               = errors.New("error listing pods")
	ErrContainerNotFoundInPod    = errors.New("container not found in pod")
)

// Identity Matcher.
var ErrNoMatchingMapper = errors.New("no registration entry matches the given selectors")

// Agent transport.
var (
	ErrUdsClientPID      = errors.New("unable to resolve unix socket peer pid")
	ErrNegativePID       = errors.New("negative pid rejected")
	ErrTrustBundleResponse = errors.New("error fetching trust bundle from server")
	ErrCreateJWTSVIDs    = errors.New("error creating jwt-svids")
	ErrValidateJWTSVIDs  = errors.New("error validating jwt-svid")
	ErrInitTrustBundle   = errors.New("error obtaining initial trust bundle after retries")
)

// Registration entry / selector value validation.
var (
	ErrInvalidSelectors = errors.New("selectors cannot be nil or empty")
	ErrWorkloadInvalid  = errors.New("workload validation failed")
)
