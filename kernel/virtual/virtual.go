// Package virtual materializes the accounts and identities living at
// addresses derived from public keys.
package virtual

import (
	"github.com/onflow/flow-kernel/kernel"
	"github.com/onflow/flow-kernel/kernel/codec"
	"github.com/onflow/flow-kernel/model/substate"
)

const (
	AccountBlueprint  = "Account"
	IdentityBlueprint = "Identity"
)

// OwnerKeyHashKey is the metadata entry holding the hash of the public key
// that owns a virtual node.
var OwnerKeyHashKey = substate.MapKey([]byte("owner_keys"))

var (
	AccountPackage  = substate.NewVirtualNodeId(substate.EntityTypeGlobalPackage, []byte("account_package"))
	IdentityPackage = substate.NewVirtualNodeId(substate.EntityTypeGlobalPackage, []byte("identity_package"))
)

// AccountState is the main substate of an account.
type AccountState struct {
	// Vaults is the key value store of the account's vaults
	Vaults codec.Own `cbor:"1,keyasint"`
}

// IdentityState is the main substate of an identity.
type IdentityState struct {
	Securified bool `cbor:"1,keyasint"`
}

// Secp256k1Account returns the virtual account address of a secp256k1
// public key.
func Secp256k1Account(publicKey []byte) substate.NodeId {
	return substate.NewVirtualNodeId(substate.EntityTypeGlobalVirtualSecp256k1Account, publicKey)
}

// Ed25519Account returns the virtual account address of an ed25519 public
// key.
func Ed25519Account(publicKey []byte) substate.NodeId {
	return substate.NewVirtualNodeId(substate.EntityTypeGlobalVirtualEd25519Account, publicKey)
}

func Secp256k1Identity(publicKey []byte) substate.NodeId {
	return substate.NewVirtualNodeId(substate.EntityTypeGlobalVirtualSecp256k1Identity, publicKey)
}

func Ed25519Identity(publicKey []byte) substate.NodeId {
	return substate.NewVirtualNodeId(substate.EntityTypeGlobalVirtualEd25519Identity, publicKey)
}

// ownerKeyHash is the part of the address derived from the public key.
func ownerKeyHash(id substate.NodeId) []byte {
	return append([]byte(nil), id[1:]...)
}

func metadata(id substate.NodeId) codec.IndexedValue {
	return codec.MustFromTyped(ownerKeyHash(id))
}

// VaultsOf returns the id of the vault store of a virtual account.
func VaultsOf(account substate.NodeId) substate.NodeId {
	return substate.NewVirtualNodeId(substate.EntityTypeInternalKeyValueStore, account.Bytes())
}

// Account creates an account owning an empty vault store.
var Account = kernel.VirtualizerFunc(func(api kernel.KernelAPI, id substate.NodeId) error {
	vaults := VaultsOf(id)
	err := api.AllocateVirtualNodeId(vaults)
	if err != nil {
		return err
	}
	err = api.CreateNode(vaults, codec.NewNodeSubstates(codec.KeyValueStoreTypeInfo()).
		WithPartition(substate.MainPartition))
	if err != nil {
		return err
	}

	state, err := codec.FromTyped(AccountState{Vaults: codec.Own(vaults)})
	if err != nil {
		return err
	}
	substates := codec.NewNodeSubstates(codec.ObjectTypeInfo(codec.NewBlueprint(AccountPackage, AccountBlueprint), true)).
		Set(substate.MainPartition, substate.FieldKey(0), state).
		Set(substate.MetadataPartition, OwnerKeyHashKey, metadata(id))
	return api.CreateNode(id, substates)
})

// Identity creates an identity that is not securified.
var Identity = kernel.VirtualizerFunc(func(api kernel.KernelAPI, id substate.NodeId) error {
	state, err := codec.FromTyped(IdentityState{})
	if err != nil {
		return err
	}
	substates := codec.NewNodeSubstates(codec.ObjectTypeInfo(codec.NewBlueprint(IdentityPackage, IdentityBlueprint), true)).
		Set(substate.MainPartition, substate.FieldKey(0), state).
		Set(substate.MetadataPartition, OwnerKeyHashKey, metadata(id))
	return api.CreateNode(id, substates)
})

// Options registers the account and identity virtualizers for every virtual
// entity type.
func Options() []kernel.Option {
	return []kernel.Option{
		kernel.WithVirtualizer(substate.EntityTypeGlobalVirtualSecp256k1Account, Account),
		kernel.WithVirtualizer(substate.EntityTypeGlobalVirtualEd25519Account, Account),
		kernel.WithVirtualizer(substate.EntityTypeGlobalVirtualSecp256k1Identity, Identity),
		kernel.WithVirtualizer(substate.EntityTypeGlobalVirtualEd25519Identity, Identity),
	}
}
