package main

import (
	"context"
	"fmt"

	"github.com/redpanda-data/benthos/v4/public/service"
	"github.com/twinfer/phisave/pkg/bitstream"
	"github.com/twinfer/phisave/pkg/phisave"
)

const (
	operationParse = "parse"
	operationBuild = "build"

	formatStructured = "structured"
	formatMsgpack    = "msgpack"
	formatJSON       = "json"

	metaRecord = "phisave_record"
)

// PhisaveProcessor converts message payloads between raw save records and
// their canonical form.
type PhisaveProcessor struct {
	config  PhisaveConfig
	codec   *phisave.Codec
	logger  *service.Logger
	mParsed *service.MetricCounter
	mBuilt  *service.MetricCounter
	mErrors *service.MetricCounter
}

// PhisaveConfig contains configuration parameters for the phisave processor.
type PhisaveConfig struct {
	Record       phisave.RecordType `json:"record" yaml:"record"`
	Operation    string             `json:"operation" yaml:"operation"`
	Format       string             `json:"format" yaml:"format"`
	StringPolicy string             `json:"string_policy" yaml:"string_policy"`
}

func init() {
	err := service.RegisterProcessor(
		"phisave",
		phisaveProcessorConfig(),
		func(conf *service.ParsedConfig, mgr *service.Resources) (service.Processor, error) {
			return newPhisaveProcessorFromConfig(conf, mgr)
		},
	)
	if err != nil {
		panic(err)
	}
}

func main() {
	service.RunCLI(context.Background())
}

func recordNames() []string {
	var names []string
	for _, rt := range phisave.RecordTypes() {
		names = append(names, string(rt))
	}
	return names
}

// phisaveProcessorConfig describes the fields of a phisave processor.
func phisaveProcessorConfig() *service.ConfigSpec {
	return service.NewConfigSpec().
		Summary("Parses or builds save records in their bit-packed wire format.").
		Description("Parsing turns raw record bytes into the canonical named form, either as a structured message or serialized as MessagePack or JSON. Building performs the reverse conversion and emits the exact wire bytes.").
		Field(service.NewStringEnumField("record", recordNames()...).
			Description("The save record carried by each message.")).
		Field(service.NewStringEnumField("operation", operationParse, operationBuild).
			Description("Whether to parse wire bytes or build them from the canonical form.").
			Default(operationParse)).
		Field(service.NewStringEnumField("format", formatStructured, formatMsgpack, formatJSON).
			Description("Representation of the canonical form on the other side of the conversion.").
			Default(formatStructured)).
		Field(service.NewStringEnumField("string_policy", bitstream.Strict.String(), bitstream.Lossy.String()).
			Description("How invalid UTF-8 in string fields is handled while parsing.").
			Default(bitstream.Strict.String()).
			Advanced()).
		Version("0.1.0")
}

// newPhisaveProcessorFromConfig creates a new PhisaveProcessor from a parsed config.
func newPhisaveProcessorFromConfig(conf *service.ParsedConfig, mgr *service.Resources) (*PhisaveProcessor, error) {
	recordName, err := conf.FieldString("record")
	if err != nil {
		return nil, err
	}
	record, err := phisave.ParseRecordType(recordName)
	if err != nil {
		return nil, err
	}

	operation, err := conf.FieldString("operation")
	if err != nil {
		return nil, err
	}
	if operation != operationParse && operation != operationBuild {
		return nil, fmt.Errorf("unknown operation '%s'", operation)
	}

	format, err := conf.FieldString("format")
	if err != nil {
		return nil, err
	}
	switch format {
	case formatStructured, formatMsgpack, formatJSON:
	default:
		return nil, fmt.Errorf("unknown format '%s'", format)
	}

	policyName, err := conf.FieldString("string_policy")
	if err != nil {
		return nil, err
	}
	policy, err := bitstream.ParseStringPolicy(policyName)
	if err != nil {
		return nil, err
	}

	metrics := mgr.Metrics()
	return &PhisaveProcessor{
		config: PhisaveConfig{
			Record:       record,
			Operation:    operation,
			Format:       format,
			StringPolicy: policyName,
		},
		codec:   phisave.New(phisave.WithStringPolicy(policy)),
		logger:  mgr.Logger(),
		mParsed: metrics.NewCounter("phisave_parsed_messages"),
		mBuilt:  metrics.NewCounter("phisave_built_messages"),
		mErrors: metrics.NewCounter("phisave_processing_errors"),
	}, nil
}

// Process parses or builds one message.
func (p *PhisaveProcessor) Process(ctx context.Context, msg *service.Message) (service.MessageBatch, error) {
	if p.config.Operation == operationParse {
		return p.parse(ctx, msg)
	}
	return p.build(ctx, msg)
}

func (p *PhisaveProcessor) fail(msg *service.Message, err error) (service.MessageBatch, error) {
	p.logger.Errorf("Failed to %s %s record: %v", p.config.Operation, p.config.Record, err)
	p.mErrors.Incr(1)
	msg.SetError(err)
	return service.MessageBatch{msg}, nil
}

func (p *PhisaveProcessor) parse(ctx context.Context, msg *service.Message) (service.MessageBatch, error) {
	raw, err := msg.AsBytes()
	if err != nil {
		return p.fail(msg, fmt.Errorf("failed to get binary data from message: %w", err))
	}
	if len(raw) == 0 {
		return p.fail(msg, fmt.Errorf("empty binary data provided"))
	}

	var newMsg *service.Message
	switch p.config.Format {
	case formatStructured:
		m, err := p.codec.ParseMap(ctx, p.config.Record, raw)
		if err != nil {
			return p.fail(msg, err)
		}
		newMsg = service.NewMessage(nil)
		newMsg.SetStructured(m)
	case formatMsgpack:
		out, err := p.codec.ParseMsgpack(ctx, p.config.Record, raw)
		if err != nil {
			return p.fail(msg, err)
		}
		newMsg = service.NewMessage(out)
	case formatJSON:
		out, err := p.codec.ParseJSON(ctx, p.config.Record, raw)
		if err != nil {
			return p.fail(msg, err)
		}
		newMsg = service.NewMessage(out)
	}

	p.logger.Debugf("Parsed %d bytes of %s record", len(raw), p.config.Record)
	p.mParsed.Incr(1)
	return service.MessageBatch{p.withMetadata(msg, newMsg)}, nil
}

func (p *PhisaveProcessor) build(ctx context.Context, msg *service.Message) (service.MessageBatch, error) {
	var (
		raw []byte
		err error
	)
	switch p.config.Format {
	case formatStructured:
		structured, serr := msg.AsStructured()
		if serr != nil {
			return p.fail(msg, fmt.Errorf("failed to get structured data from message: %w", serr))
		}
		m, ok := structured.(map[string]any)
		if !ok {
			return p.fail(msg, fmt.Errorf("expected an object, got %T", structured))
		}
		raw, err = p.codec.BuildMap(ctx, p.config.Record, m)
	case formatMsgpack, formatJSON:
		data, berr := msg.AsBytes()
		if berr != nil {
			return p.fail(msg, fmt.Errorf("failed to get data from message: %w", berr))
		}
		if p.config.Format == formatMsgpack {
			raw, err = p.codec.BuildMsgpack(ctx, p.config.Record, data)
		} else {
			raw, err = p.codec.BuildJSON(ctx, p.config.Record, data)
		}
	}
	if err != nil {
		return p.fail(msg, err)
	}

	p.logger.Debugf("Built %d bytes of %s record", len(raw), p.config.Record)
	p.mBuilt.Incr(1)
	return service.MessageBatch{p.withMetadata(msg, service.NewMessage(raw))}, nil
}

// withMetadata copies the metadata of msg onto newMsg and tags the record type.
func (p *PhisaveProcessor) withMetadata(msg, newMsg *service.Message) *service.Message {
	_ = msg.MetaWalk(func(key, value string) error {
		newMsg.MetaSet(key, value)
		return nil
	})
	newMsg.MetaSet(metaRecord, string(p.config.Record))
	return newMsg
}

// Close the processor resources
func (p *PhisaveProcessor) Close(ctx context.Context) error {
	return nil
}
