package convert

import (
	"reflect"

	"github.com/bytedance/sonic"
)

// StructAssign
// dst 目标结构体，src 源结构体
// 它会把src与dst的相同字段名的值，复制到dst中
func StructAssign(src any, dst any) any {
	bVal := reflect.ValueOf(dst).Elem()
	vVal := reflect.ValueOf(src).Elem()
	vTypeOfT := vVal.Type()
	for i := 0; i < vVal.NumField(); i++ {
		// 在要修改的结构体中查询有数据结构体中相同属性的字段，有则修改其值
		name := vTypeOfT.Field(i).Name
		target := bVal.FieldByName(name)
		if !target.IsValid() {
			continue
		}
		srcField := vVal.Field(i)
		if srcField.Type().AssignableTo(target.Type()) {
			target.Set(srcField)
		}
	}

	return dst
}

// StructToMap 结构体转 map，data 需要引用传入
func StructToMap(param any, data map[string]interface{}) error {
	str, err := sonic.Marshal(param)
	if err != nil {
		return err
	}
	return sonic.Unmarshal(str, &data)
}
