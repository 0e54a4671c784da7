package operation

import (
	"github.com/bundlebase/bundlebase/internal/bberrors"
	"github.com/bundlebase/bundlebase/internal/manifest"
)

// factory constructs a zero-value Operation for a given type tag, ready
// for manifest.OperationEnvelope.Decode to fill in.
type factory func() Operation

var registry = map[string]factory{
	TypeDefinePack:      func() Operation { return &DefinePack{} },
	TypeDefineSource:    func() Operation { return &DefineSource{} },
	TypeAttachBlock:     func() Operation { return &AttachBlock{} },
	TypeRemoveColumns:   func() Operation { return &RemoveColumns{} },
	TypeRenameColumn:    func() Operation { return &RenameColumn{} },
	TypeFilter:          func() Operation { return &Filter{} },
	TypeSelect:          func() Operation { return &Select{} },
	TypeJoin:            func() Operation { return &Join{} },
	TypeAttachToJoin:    func() Operation { return &AttachToJoin{} },
	TypeSetName:         func() Operation { return &SetName{} },
	TypeSetDescription:  func() Operation { return &SetDescription{} },
	TypeDefineFunction:  func() Operation { return &DefineFunction{} },
	TypeCreateIndex:     func() Operation { return &CreateIndex{} },
	TypeIndexBlocks:     func() Operation { return &IndexBlocks{} },
	TypeDropIndex:       func() Operation { return &DropIndex{} },
	TypeAttachView:      func() Operation { return &AttachView{} },
}

// Encode wraps op as a manifest.OperationEnvelope for inclusion in a
// Change.
func Encode(op Operation) (manifest.OperationEnvelope, error) {
	return manifest.NewOperationEnvelope(op.Type(), op)
}

// Decode reconstructs the concrete Operation an envelope carries.
// Unknown type tags are a fatal load error (spec.md §4.1).
func Decode(env manifest.OperationEnvelope) (Operation, error) {
	f, ok := registry[env.Type]
	if !ok {
		return nil, bberrors.New(bberrors.UnknownOp, "operation.Decode", "unrecognized operation type").
			WithDetails(map[string]string{"type": env.Type})
	}
	op := f()
	if err := env.Decode(op); err != nil {
		return nil, bberrors.Wrap(bberrors.IO, "operation.Decode", "decoding operation body", err)
	}
	return op, nil
}

// DecodeAll decodes every envelope in order, stopping at the first
// failure.
func DecodeAll(envs []manifest.OperationEnvelope) ([]Operation, error) {
	out := make([]Operation, 0, len(envs))
	for _, e := range envs {
		op, err := Decode(e)
		if err != nil {
			return nil, err
		}
		out = append(out, op)
	}
	return out, nil
}

// EncodeAll encodes every operation in order.
func EncodeAll(ops []Operation) ([]manifest.OperationEnvelope, error) {
	out := make([]manifest.OperationEnvelope, 0, len(ops))
	for _, op := range ops {
		env, err := Encode(op)
		if err != nil {
			return nil, err
		}
		out = append(out, env)
	}
	return out, nil
}
