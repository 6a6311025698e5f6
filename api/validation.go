package api

import (
	"sync"

	"wileywidget/models"

	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
)

var registerOnce sync.Once

// RegisterValidators 向 gin 的校验引擎注册自定义规则，需在绑定请求前调用
//
//	accountnumber: 点分科目编号，如 405 或 405.1
func RegisterValidators() {
	registerOnce.Do(func() {
		v, ok := binding.Validator.Engine().(*validator.Validate)
		if !ok {
			return
		}
		_ = v.RegisterValidation("accountnumber", func(fl validator.FieldLevel) bool {
			return models.ValidAccountNumber(fl.Field().String())
		})
	})
}
