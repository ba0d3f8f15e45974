package policyopa

import (
	"context"
	"encoding/json"
	"errors"
	"sort"

	"firmaflow/internal/domain"
	"firmaflow/internal/usecase"

	"github.com/open-policy-agent/opa/rego"
)

const defaultQuery = "data.firmaflow.policy.result"

// Engine evaluates the signing policy with OPA. The policy decides
// whether a given certificate, signer and container combination may
// produce a signature.
type Engine struct {
	query      rego.PreparedEvalQuery
	bundleHash string
}

// NewEngineFromBundlePath loads rego policies from a directory or
// bundle file.
func NewEngineFromBundlePath(ctx context.Context, bundlePath string) (*Engine, error) {
	bundleHash, err := ComputeBundleHashFromPath(bundlePath)
	if err != nil {
		return nil, err
	}
	r := rego.New(
		rego.Query(defaultQuery),
		rego.StrictBuiltinErrors(true),
		rego.Load([]string{bundlePath}, nil),
	)
	prepared, err := r.PrepareForEval(ctx)
	if err != nil {
		return nil, err
	}
	return &Engine{query: prepared, bundleHash: bundleHash}, nil
}

// NewEngineFromModule compiles a single in-memory rego module. Used for
// the built-in default policy and in tests.
func NewEngineFromModule(ctx context.Context, module string) (*Engine, error) {
	r := rego.New(
		rego.Query(defaultQuery),
		rego.StrictBuiltinErrors(true),
		rego.Module("policy.rego", module),
	)
	prepared, err := r.PrepareForEval(ctx)
	if err != nil {
		return nil, err
	}
	return &Engine{query: prepared, bundleHash: hashModule(module)}, nil
}

// DefaultPolicy allows signing with an active user certificate that
// carries the document-signing usage. Everything else is denied with a
// coded reason.
const DefaultPolicy = `package firmaflow.policy

default result := {"allow": false, "deny": [{"code": "no_match", "message": "no policy rule matched"}]}

result := {"allow": true, "deny": []} {
	input.certificate.state == "active"
	input.certificate.class == "user"
	some i
	input.certificate.usages[i] == "sign_document"
}

result := {"allow": false, "deny": [{"code": "class_forbidden", "message": "only user certificates may sign documents"}]} {
	input.certificate.state == "active"
	input.certificate.class != "user"
}
`

func (e *Engine) BundleHash() string {
	return e.bundleHash
}

func (e *Engine) Evaluate(ctx context.Context, input domain.PolicyInput) (domain.PolicyEvaluation, error) {
	if e == nil {
		return domain.PolicyEvaluation{}, errors.New("policy engine is nil")
	}
	results, err := e.query.Eval(ctx, rego.EvalInput(input))
	if err != nil {
		return domain.PolicyEvaluation{}, err
	}
	if len(results) == 0 || len(results[0].Expressions) == 0 {
		return domain.PolicyEvaluation{}, errors.New("empty policy result")
	}
	result, err := decodePolicyResult(results[0].Expressions[0].Value)
	if err != nil {
		return domain.PolicyEvaluation{}, err
	}
	normalizePolicyResult(&result)
	return domain.PolicyEvaluation{
		BundleHash: e.bundleHash,
		Result:     result,
	}, nil
}

func decodePolicyResult(value any) (domain.PolicyResult, error) {
	payload, err := json.Marshal(value)
	if err != nil {
		return domain.PolicyResult{}, err
	}
	var result domain.PolicyResult
	if err := json.Unmarshal(payload, &result); err != nil {
		return domain.PolicyResult{}, err
	}
	return result, nil
}

func normalizePolicyResult(result *domain.PolicyResult) {
	if result == nil {
		return
	}
	sort.Slice(result.Deny, func(i, j int) bool {
		if result.Deny[i].Code == result.Deny[j].Code {
			return result.Deny[i].Message < result.Deny[j].Message
		}
		return result.Deny[i].Code < result.Deny[j].Code
	})
}

var _ usecase.PolicyEngine = (*Engine)(nil)
