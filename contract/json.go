package contract

import (
	"encoding/json"

	"github.com/jamesob/sapio/amount"
	chainjson "github.com/jamesob/sapio/encoding/json"
	"github.com/jamesob/sapio/template"
)

type templateJSON struct {
	Hash      chainjson.HexBytes `json:"ctv_hash"`
	Version   int32              `json:"version"`
	Sequence  uint32             `json:"sequence"`
	LockTime  uint32             `json:"lock_time"`
	FeeMargin amount.Amount      `json:"fee_margin"`
	Outputs   []outputJSON       `json:"outputs"`
}

type outputJSON struct {
	Amount   amount.Amount      `json:"amount"`
	PkScript chainjson.HexBytes `json:"pk_script"`
	Contract string             `json:"contract,omitempty"`
}

type pathJSON struct {
	SpendingPath
	Template *templateJSON `json:"template,omitempty"`
}

func describeTemplate(t *template.Template) *templateJSON {
	if t == nil {
		return nil
	}
	h := t.CTVHash()
	tj := &templateJSON{
		Hash:      h[:],
		Version:   t.Version(),
		Sequence:  t.Sequence(),
		LockTime:  t.LockTime(),
		FeeMargin: t.FeeMargin(),
	}
	for _, out := range t.Outputs() {
		oj := outputJSON{Amount: out.Amount, PkScript: out.Dest.PkScript()}
		if c, ok := out.Dest.(*Contract); ok {
			oj.Contract = c.Name()
		}
		tj.Outputs = append(tj.Outputs, oj)
	}
	return tj
}

// MarshalJSON describes c: its fields, paths, accepted amounts,
// and compiled script.
func (c *Contract) MarshalJSON() ([]byte, error) {
	v := struct {
		Name     string             `json:"name"`
		Fields   []Field            `json:"fields,omitempty"`
		Range    amount.Range       `json:"range"`
		Paths    []pathJSON         `json:"paths,omitempty"`
		Script   chainjson.HexBytes `json:"witness_script,omitempty"`
		Disasm   string             `json:"disasm,omitempty"`
		PkScript chainjson.HexBytes `json:"pk_script"`
	}{
		Name:     c.name,
		Range:    c.rng,
		PkScript: c.pkScript,
	}
	for _, f := range c.fields {
		if b, ok := f.Value.([]byte); ok {
			f.Value = chainjson.HexBytes(b)
		}
		v.Fields = append(v.Fields, f)
	}
	for _, p := range c.paths {
		v.Paths = append(v.Paths, pathJSON{SpendingPath: p, Template: describeTemplate(p.Template)})
	}
	if c.manager != nil {
		v.Script = c.manager.Script()
		v.Disasm = c.manager.Disasm()
	}
	return json.Marshal(v)
}
