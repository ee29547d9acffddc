package pipeline

import (
	_ "embed"
	"fmt"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

//go:embed pipeline_schema.json
var pipelineSchemaJSON string

var pipelineSchema = mustCompileSchema()

func mustCompileSchema() *jsonschema.Schema {
	c := jsonschema.NewCompiler()
	if err := c.AddResource("pipeline_config.schema.json", strings.NewReader(pipelineSchemaJSON)); err != nil {
		panic(fmt.Sprintf("add pipeline schema resource: %v", err))
	}
	schema, err := c.Compile("pipeline_config.schema.json")
	if err != nil {
		panic(fmt.Sprintf("compile pipeline schema: %v", err))
	}
	return schema
}

// ValidateResolved 用内置 JSON Schema 校验合并后的完整 pipeline 配置。
// 只做形状与范围检查，字段级约束在表单校验阶段已经执行过。
func ValidateResolved(cfg Value) error {
	if !cfg.IsObject() {
		return fmt.Errorf("pipeline config must be a JSON object")
	}
	if err := pipelineSchema.Validate(cfg.ToAny()); err != nil {
		return fmt.Errorf("pipeline config validation failed: %w", err)
	}
	return nil
}
