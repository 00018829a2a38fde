package service

import "testing"

func TestValidateQRCode_Valid(t *testing.T) {
	errs := ValidateQRCode(QRCodeForm{Title: "T", ProductID: "P", Destination: "product"})
	if errs != nil {
		t.Fatalf("expected no errors, got %v", errs)
	}
}

func TestValidateQRCode_MissingTitle(t *testing.T) {
	errs := ValidateQRCode(QRCodeForm{ProductID: "P", Destination: "product"})
	if len(errs) != 1 || errs["title"] != "Title is required" {
		t.Fatalf("expected only the title error, got %v", errs)
	}
}

func TestValidateQRCode_Empty(t *testing.T) {
	errs := ValidateQRCode(QRCodeForm{})
	want := map[string]string{
		"title":       "Title is required",
		"productId":   "Product is required",
		"destination": "Destination is required",
	}
	if len(errs) != len(want) {
		t.Fatalf("expected %d errors, got %v", len(want), errs)
	}
	for field, msg := range want {
		if errs[field] != msg {
			t.Fatalf("field %s: expected %q, got %q", field, msg, errs[field])
		}
	}
}

func TestValidateQRCode_UnknownDestination(t *testing.T) {
	errs := ValidateQRCode(QRCodeForm{Title: "T", ProductID: "P", Destination: "checkout"})
	if errs["destination"] != "Destination must be product or cart" {
		t.Fatalf("unexpected errors %v", errs)
	}
}
