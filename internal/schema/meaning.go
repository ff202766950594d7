package schema

import "strings"

var abbreviations = map[string]string{
	"nm": "name", "dt": "date", "no": "number", "cd": "code",
	"desc": "description", "amt": "amount", "cnt": "count", "qty": "quantity",
	"addr": "address", "tel": "phone", "hp": "phone", "ph": "phone", "mobile": "phone",
	"pwd": "password", "passwd": "password", "pw": "password",
	"img": "image", "zip": "zipcode", "post": "zipcode",
	"msg": "message", "txt": "text", "tit": "title", "subj": "subject",
	"usr": "user", "emp": "employee", "dept": "department", "grp": "group", "cat": "category",
	"lat": "latitude", "lng": "longitude", "lon": "longitude",
	"st": "street", "bal": "balance", "mid": "id", "uid": "id", "pid": "id",
	"reg": "registered", "mod": "modified", "del": "deleted", "cre": "created",
	"upd": "updated", "yn": "yesno", "stat": "status", "sts": "status",
	"typ": "type", "val": "value", "seq": "sequence", "idx": "index",
	"is": "yesno", "use": "yesno", "flg": "flag", "mail": "email",
}

// meaningRules is checked in order against the comment and the decoded column name.
var meaningRules = []struct {
	meaning  string
	keywords []string
}{
	{"email", []string{"email", "e-mail"}},
	{"phone", []string{"phone", "mobile"}},
	{"zipcode", []string{"zipcode", "postal"}},
	{"address", []string{"address", "street"}},
	{"password", []string{"password"}},
	{"url", []string{"url", "homepage", "website"}},
	{"ip", []string{"ip address", "ipaddr"}},
	{"country", []string{"country", "nation"}},
	{"city", []string{"city"}},
	{"latitude", []string{"latitude"}},
	{"longitude", []string{"longitude"}},
	{"name", []string{"name"}},
	{"title", []string{"title", "subject"}},
	{"description", []string{"description", "message", "text", "comment", "content"}},
	{"date", []string{"date", "time", "created", "updated", "registered", "modified", "deleted"}},
	{"price", []string{"price", "cost", "amount", "balance"}},
	{"count", []string{"count", "quantity"}},
	{"yesno", []string{"yesno", "flag", "enabled", "active"}},
	{"status", []string{"status", "state"}},
	{"code", []string{"code", "type"}},
}

// AnalyzeMeaning guesses what a column holds from its comment and name.
// Abbreviated names are decoded first ("usr_tel" -> "user phone").
func AnalyzeMeaning(colName, comment string) string {
	if m := matchMeaning(strings.ToLower(comment)); m != "" {
		return m
	}

	parts := strings.FieldsFunc(strings.ToLower(colName), func(r rune) bool {
		return r == '_' || r == '-' || r == ' '
	})
	for i, part := range parts {
		if full, ok := abbreviations[part]; ok {
			parts[i] = full
		}
	}
	decoded := strings.Join(parts, " ")
	if m := matchMeaning(decoded); m != "" {
		return m
	}
	return decoded
}

func matchMeaning(s string) string {
	if s == "" {
		return ""
	}
	for _, rule := range meaningRules {
		for _, kw := range rule.keywords {
			if strings.Contains(s, kw) {
				return rule.meaning
			}
		}
	}
	if s == "ip" || strings.HasSuffix(s, " ip") {
		return "ip"
	}
	return ""
}
