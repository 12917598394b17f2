package protobuf

import (
	"context"
	"fmt"
	"path"
	"strings"

	"github.com/bufbuild/protocompile"
	"github.com/dmphub-lab/dmphub/internal/schema"
	"google.golang.org/protobuf/reflect/protoreflect"
)

// Compiler compiles .proto contract definitions. The document is validated
// against the top-level message whose name starts with the contract name
// ("delete" -> Delete or DeleteDocument), else the last top-level message.
type Compiler struct{}

func NewCompiler() *Compiler {
	return &Compiler{}
}

func (c *Compiler) Compile(ctx context.Context, s *schema.Schema) (*schema.CompiledSchema, error) {
	if s.Format != schema.FormatProtobuf {
		return nil, fmt.Errorf("expected protobuf format, got %s", s.Format)
	}

	fileName := path.Join(s.Scope, string(s.Contract), fmt.Sprintf("v%d.proto", s.Version))
	compiler := protocompile.Compiler{
		Resolver: protocompile.WithStandardImports(&protocompile.SourceResolver{
			Accessor: protocompile.SourceAccessorFromMap(map[string]string{
				fileName: string(s.Definition),
			}),
		}),
		SourceInfoMode: protocompile.SourceInfoNone,
	}

	files, err := compiler.Compile(ctx, fileName)
	if err != nil {
		return nil, fmt.Errorf("failed to compile %s contract v%d: %w", s.Contract, s.Version, err)
	}

	md, err := rootMessage(files[0].Messages(), s.Contract)
	if err != nil {
		return nil, err
	}

	return &schema.CompiledSchema{
		Contract:        s.Contract,
		Version:         s.Version,
		Format:          schema.FormatProtobuf,
		StrictMode:      s.StrictMode,
		ProtoDescriptor: &md,
	}, nil
}

func rootMessage(messages protoreflect.MessageDescriptors, contract schema.Contract) (protoreflect.MessageDescriptor, error) {
	if messages.Len() == 0 {
		return nil, fmt.Errorf("%s contract defines no message", contract)
	}

	prefix := strings.ToLower(string(contract))
	for i := 0; i < messages.Len(); i++ {
		md := messages.Get(i)
		if strings.HasPrefix(strings.ToLower(string(md.Name())), prefix) {
			return md, nil
		}
	}
	return messages.Get(messages.Len() - 1), nil
}
