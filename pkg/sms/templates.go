package sms

import (
	"fmt"
	"strings"
	"text/template"
)

// Template names a stored message body.
type Template string

const (
	TemplateOTPLogin          Template = "otp_login"
	TemplateOTPRegister       Template = "otp_register"
	TemplateOTPPasswordReset  Template = "otp_password_reset"
	TemplateOTPPhoneVerify    Template = "otp_phone_verify"
	TemplateWelcome           Template = "welcome"
	TemplateOrderConfirmation Template = "order_confirmation"
	TemplatePaymentSuccess    Template = "payment_success"
)

var templateSources = []struct {
	name Template
	body string
}{
	{TemplateOTPLogin, "کد ورود شما: {{.code}}\nاین کد تا {{.expiry_minutes}} دقیقه معتبر است.\n{{.store_name}}"},
	{TemplateOTPRegister, "کد تایید ثبت‌نام: {{.code}}\nاین کد تا {{.expiry_minutes}} دقیقه معتبر است.\n{{.store_name}}"},
	{TemplateOTPPasswordReset, "کد بازیابی رمز عبور: {{.code}}\nاین کد تا {{.expiry_minutes}} دقیقه معتبر است.\n{{.store_name}}"},
	{TemplateOTPPhoneVerify, "کد تایید شماره موبایل: {{.code}}\nاین کد تا {{.expiry_minutes}} دقیقه معتبر است.\n{{.store_name}}"},
	{TemplateWelcome, "{{.name}} عزیز، به {{.store_name}} خوش آمدید."},
	{TemplateOrderConfirmation, "سفارش شما با کد {{.order_number}} ثبت شد.\nمبلغ: {{.amount}} تومان\n{{.store_name}}"},
	{TemplatePaymentSuccess, "پرداخت شما با موفقیت انجام شد.\nکد مرجع: {{.reference_id}}\nمبلغ: {{.amount}} تومان\n{{.store_name}}"},
}

var templates = func() map[Template]*template.Template {
	out := make(map[Template]*template.Template, len(templateSources))
	for _, src := range templateSources {
		out[src.name] = template.Must(template.New(string(src.name)).Option("missingkey=zero").Parse(src.body))
	}
	return out
}()

// Render fills the named template. Missing variables render empty.
func Render(name Template, vars map[string]string) (string, error) {
	tmpl, ok := templates[name]
	if !ok {
		return "", fmt.Errorf("unknown sms template %q", name)
	}
	if vars == nil {
		vars = map[string]string{}
	}
	var b strings.Builder
	if err := tmpl.Execute(&b, vars); err != nil {
		return "", fmt.Errorf("render %s: %w", name, err)
	}
	return strings.TrimSpace(strings.ReplaceAll(b.String(), "<no value>", "")), nil
}
