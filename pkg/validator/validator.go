// Package validator 封装 gin binding 所用的验证器
package validator

import (
	"reflect"
	"strings"
	"sync"

	"github.com/gin-gonic/gin/binding"
	val "github.com/go-playground/validator/v10"
)

// CustomValidator 实现 binding.StructValidator
type CustomValidator struct {
	once     sync.Once
	Validate *val.Validate
}

func NewCustomValidator() *CustomValidator {
	return &CustomValidator{}
}

func (v *CustomValidator) ValidateStruct(obj interface{}) error {
	if reflect.ValueOf(obj).Kind() == reflect.Struct {
		v.lazyinit()
		if err := v.Validate.Struct(obj); err != nil {
			return err
		}
	}
	return nil
}

func (v *CustomValidator) Engine() interface{} {
	v.lazyinit()
	return v.Validate
}

func (v *CustomValidator) lazyinit() {
	v.once.Do(func() {
		v.Validate = val.New()
		v.Validate.SetTagName("binding")
	})
}

// 合法的冲突策略名
var conflictPolicies = map[string]bool{
	"reject-stale":     true,
	"last-writer-wins": true,
	"field-merge":      true,
}

// RegisterCustom 注册自定义验证规则
// conflict_policy: 冲突策略名必须是已知策略之一
// operation: 变更操作类型
func RegisterCustom() {
	if v, ok := binding.Validator.Engine().(*val.Validate); ok {
		_ = v.RegisterValidation("conflict_policy", func(fl val.FieldLevel) bool {
			return conflictPolicies[strings.ToLower(fl.Field().String())]
		})
		_ = v.RegisterValidation("operation", func(fl val.FieldLevel) bool {
			switch strings.ToLower(fl.Field().String()) {
			case "create", "update", "delete":
				return true
			}
			return false
		})
	}
}
