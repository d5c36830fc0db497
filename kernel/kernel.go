// Package kernel runs invocations in nested call frames over the heap and
// the track, calling the module pipeline around every state transition.
package kernel

import (
	"github.com/rs/zerolog"

	"github.com/onflow/flow-kernel/kernel/callframe"
	"github.com/onflow/flow-kernel/kernel/heap"
	"github.com/onflow/flow-kernel/kernel/idalloc"
	"github.com/onflow/flow-kernel/kernel/module"
	"github.com/onflow/flow-kernel/kernel/track"
	"github.com/onflow/flow-kernel/model/substate"
)

type frame struct {
	*callframe.CallFrame

	// actor is nil for the root frame
	actor *Actor
}

// Kernel holds the state of one transaction. It is not safe for concurrent
// use and must not be reused across transactions.
type Kernel struct {
	ctx    Context
	log    zerolog.Logger
	txHash [32]byte

	heap      *heap.Heap
	track     *track.Track
	allocator *idalloc.Allocator
	modules   *module.Pipeline

	frames []*frame
	mode   ExecutionMode
	// virtualizing is set while a virtualizer runs
	virtualizing bool
	// aborted is the first error an invocation failed with. The transaction
	// fails with it even if the executor that saw it carried on.
	aborted error
}

var _ KernelAPI = (*Kernel)(nil)

// New creates a kernel with an empty heap and a root frame, executing in
// kernel mode.
func New(
	ctx Context,
	tr *track.Track,
	txHash [32]byte,
	modules *module.Pipeline,
) *Kernel {
	return &Kernel{
		ctx:       ctx,
		log:       ctx.Logger.With().Str("component", "kernel").Logger(),
		txHash:    txHash,
		heap:      heap.New(),
		track:     tr,
		allocator: idalloc.New(txHash),
		modules:   modules,
		frames:    []*frame{{CallFrame: callframe.NewRootFrame()}},
		mode:      ModeKernel,
	}
}

func (k *Kernel) TransactionHash() [32]byte {
	return k.txHash
}

func (k *Kernel) current() *frame {
	return k.frames[len(k.frames)-1]
}

// RootFrame returns the frame spanning the transaction.
func (k *Kernel) RootFrame() *callframe.CallFrame {
	return k.frames[0].CallFrame
}

// Heap returns the nodes not pushed to the store.
func (k *Kernel) Heap() *heap.Heap {
	return k.heap
}

// Track returns the store overlay of the transaction.
func (k *Kernel) Track() *track.Track {
	return k.track
}

// Allocator returns the id allocator of the transaction.
func (k *Kernel) Allocator() *idalloc.Allocator {
	return k.allocator
}

func (k *Kernel) CurrentDepth() int {
	return k.current().Depth()
}

func (k *Kernel) CurrentActor() (Actor, bool) {
	f := k.current()
	if f.actor == nil {
		return Actor{}, false
	}
	return *f.actor, true
}

func (k *Kernel) ExecutionMode() ExecutionMode {
	return k.mode
}

func (k *Kernel) Modules() *module.Pipeline {
	return k.modules
}

func (k *Kernel) NodeVisibility(id substate.NodeId) (callframe.RefKind, bool) {
	return k.current().NodeVisibility(id)
}

// ExecuteInMode runs f in mode and restores the current mode afterwards.
func (k *Kernel) ExecuteInMode(mode ExecutionMode, f func() error) error {
	err := VerifyModeTransition(k.mode, mode)
	if err != nil {
		return err
	}
	return k.withMode(mode, f)
}

// withMode switches modes without checks. It is reserved to the kernel.
func (k *Kernel) withMode(mode ExecutionMode, f func() error) error {
	previous := k.mode
	k.mode = mode
	defer func() { k.mode = previous }()
	return f()
}

func (k *Kernel) abort(err error) error {
	if err != nil && k.aborted == nil {
		k.aborted = err
	}
	return err
}
