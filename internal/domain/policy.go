package domain

// PolicyInput is what the signing-policy engine sees for one signing act.
type PolicyInput struct {
	Certificate PolicyCertificate `json:"certificate"`
	Signer      PolicySigner      `json:"signer"`
	Container   ContainerType     `json:"container"`
	Level       SignatureLevel    `json:"level"`
	Countersign bool              `json:"countersign"`
}

type PolicyCertificate struct {
	Class   CertificateClass `json:"class"`
	Usages  []KeyUsage       `json:"usages"`
	State   CertificateState `json:"state"`
	KeyBits int              `json:"key_bits"`
}

type PolicySigner struct {
	UserID    string     `json:"user_id"`
	Role      SignerRole `json:"role"`
	Mandatory bool       `json:"mandatory"`
}

type PolicyDeny struct {
	Code    string `json:"code"`
	Message string `json:"message,omitempty"`
}

type PolicyResult struct {
	Allow bool         `json:"allow"`
	Deny  []PolicyDeny `json:"deny,omitempty"`
}

type PolicyEvaluation struct {
	BundleHash string       `json:"bundle_hash"`
	Result     PolicyResult `json:"result"`
}
