package enums

import "testing"

func TestParseTransactionType(t *testing.T) {
	for _, typ := range TransactionTypes() {
		got, err := ParseTransactionType(string(typ))
		if err != nil {
			t.Fatalf("parse %q: %v", typ, err)
		}
		if got != typ {
			t.Fatalf("expected %q got %q", typ, got)
		}
		if typ.DefaultDescription() == "" {
			t.Fatalf("missing default description for %q", typ)
		}
	}
	if _, err := ParseTransactionType("withdrawal"); err == nil {
		t.Fatal("expected unknown type to fail")
	}
}

func TestTransactionTypeRequiresOrder(t *testing.T) {
	if !TransactionTypePayment.RequiresOrder() || !TransactionTypeRefund.RequiresOrder() {
		t.Fatal("payment and refund must reference an order")
	}
	if TransactionTypeDeposit.RequiresOrder() || TransactionTypeAdjustment.RequiresOrder() {
		t.Fatal("administrative types must not require an order")
	}
}

func TestAdjustmentDirection(t *testing.T) {
	if _, err := ParseAdjustmentDirection("sideways"); err == nil {
		t.Fatal("expected invalid direction to fail")
	}
	if !AdjustmentDirectionDecrease.IsValid() {
		t.Fatal("decrease should be valid")
	}
}
