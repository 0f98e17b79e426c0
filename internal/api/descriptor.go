package api

import (
	"fmt"

	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/reflect/protodesc"
	"google.golang.org/protobuf/reflect/protoreflect"
	"google.golang.org/protobuf/reflect/protoregistry"
	"google.golang.org/protobuf/types/descriptorpb"
	"google.golang.org/protobuf/types/known/structpb"
)

const correlationProtoPath = "ratip/v1/correlation.proto"

var structTypeName = "." + string((&structpb.Struct{}).ProtoReflect().Descriptor().FullName())

// correlationFile describes ratip.v1.Correlation so that server reflection can
// resolve it without generated stubs.
var correlationFile = mustRegisterCorrelationFile()

func mustRegisterCorrelationFile() protoreflect.FileDescriptor {
	fd, err := buildCorrelationFile(protoregistry.GlobalFiles)
	if err != nil {
		panic(err)
	}
	return fd
}

func buildCorrelationFile(files *protoregistry.Files) (protoreflect.FileDescriptor, error) {
	if existing, err := files.FindFileByPath(correlationProtoPath); err == nil {
		return existing, nil
	}

	methods := make([]*descriptorpb.MethodDescriptorProto, 0, 3)
	for _, name := range []string{"PutTelemetry", "PutAlarm", "Query"} {
		methods = append(methods, &descriptorpb.MethodDescriptorProto{
			Name:       proto.String(name),
			InputType:  proto.String(structTypeName),
			OutputType: proto.String(structTypeName),
		})
	}
	fdp := &descriptorpb.FileDescriptorProto{
		Name:       proto.String(correlationProtoPath),
		Package:    proto.String("ratip.v1"),
		Dependency: []string{"google/protobuf/struct.proto"},
		Syntax:     proto.String("proto3"),
		Service: []*descriptorpb.ServiceDescriptorProto{{
			Name:   proto.String("Correlation"),
			Method: methods,
		}},
	}

	fd, err := protodesc.NewFile(fdp, files)
	if err != nil {
		return nil, fmt.Errorf("build %s: %w", correlationProtoPath, err)
	}
	if err := files.RegisterFile(fd); err != nil {
		return nil, fmt.Errorf("register %s: %w", correlationProtoPath, err)
	}
	return fd, nil
}
