package kernel

import (
	"github.com/onflow/flow-kernel/kernel/module/costing"
	"github.com/onflow/flow-kernel/kernel/track"
	"github.com/onflow/flow-kernel/model/substate"
)

const (
	DefaultMaxCallDepth = 8

	FungibleVaultBlueprint    = "FungibleVault"
	NonFungibleVaultBlueprint = "NonFungibleVault"
	ProofBlueprint            = "Proof"

	RecallFunction = "recall"
	DropFunction   = "drop"
)

// DirectAccessRule allows references to internal objects of a blueprint for
// invocations of one function or method.
type DirectAccessRule struct {
	BlueprintName string `mapstructure:"blueprint"`
	Ident         string `mapstructure:"ident"`
}

// DefaultDirectAccessRules allows recalling vaults.
var DefaultDirectAccessRules = []DirectAccessRule{
	{BlueprintName: FungibleVaultBlueprint, Ident: RecallFunction},
	{BlueprintName: NonFungibleVaultBlueprint, Ident: RecallFunction},
}

// Parameters bound what a transaction may do in the kernel.
type Parameters struct {
	MaxCallDepth int
	DirectAccess []DirectAccessRule
	// NativePackages are visible to every frame without an existence check.
	NativePackages []substate.NodeId
	// DroppableBlueprints maps blueprint names to the function dropping one
	// of their nodes. Nodes of other blueprints must be returned or dropped
	// explicitly.
	DroppableBlueprints map[string]string
	CostLimit           uint
	Track               track.Parameters
}

func DefaultParameters() Parameters {
	return Parameters{
		MaxCallDepth:        DefaultMaxCallDepth,
		DirectAccess:        DefaultDirectAccessRules,
		DroppableBlueprints: map[string]string{ProofBlueprint: DropFunction},
		CostLimit:           costing.DefaultCostLimit,
		Track:               track.DefaultParameters(),
	}
}

// WithMaxCallDepth sets the maximum depth of nested invocations
func (params Parameters) WithMaxCallDepth(depth int) Parameters {
	newParams := params
	newParams.MaxCallDepth = depth
	return newParams
}

// WithDirectAccessRules replaces the direct access allow-list
func (params Parameters) WithDirectAccessRules(rules ...DirectAccessRule) Parameters {
	newParams := params
	newParams.DirectAccess = rules
	return newParams
}

// WithNativePackages sets the packages visible without existence check
func (params Parameters) WithNativePackages(packages ...substate.NodeId) Parameters {
	newParams := params
	newParams.NativePackages = packages
	return newParams
}

// WithDroppableBlueprint registers the drop function of a blueprint
func (params Parameters) WithDroppableBlueprint(blueprintName string, function string) Parameters {
	newParams := params
	newParams.DroppableBlueprints = make(map[string]string, len(params.DroppableBlueprints)+1)
	for name, fn := range params.DroppableBlueprints {
		newParams.DroppableBlueprints[name] = fn
	}
	newParams.DroppableBlueprints[blueprintName] = function
	return newParams
}

// WithCostLimit sets the cost limit of a transaction
func (params Parameters) WithCostLimit(limit uint) Parameters {
	newParams := params
	newParams.CostLimit = limit
	return newParams
}

// WithTrackParameters sets the store interaction limits
func (params Parameters) WithTrackParameters(trackParams track.Parameters) Parameters {
	newParams := params
	newParams.Track = trackParams
	return newParams
}

func (params Parameters) isNativePackage(id substate.NodeId) bool {
	for _, pkg := range params.NativePackages {
		if pkg == id {
			return true
		}
	}
	return false
}

func (params Parameters) allowsDirectAccess(blueprintName string, ident string) bool {
	for _, rule := range params.DirectAccess {
		if rule.BlueprintName == blueprintName && rule.Ident == ident {
			return true
		}
	}
	return false
}
