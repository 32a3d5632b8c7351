package api

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/rs/zerolog"
)

const sampleCallback = `{
  "Body": {
    "stkCallback": {
      "MerchantRequestID": "29115-34620561-1",
      "CheckoutRequestID": "ws_CO_191220191020363925",
      "ResultCode": 0,
      "ResultDesc": "The service request is processed successfully.",
      "CallbackMetadata": {
        "Item": [
          {"Name": "Amount", "Value": 1000.0},
          {"Name": "MpesaReceiptNumber", "Value": "NLJ7RT61SV"},
          {"Name": "TransactionDate", "Value": 20191219102115},
          {"Name": "PhoneNumber", "Value": 254708374149}
        ]
      }
    }
  }
}`

func TestStkCallbackEnvelope(t *testing.T) {
	var env stkCallbackEnvelope
	if err := json.Unmarshal([]byte(sampleCallback), &env); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}

	cb := env.Body.StkCallback
	if cb.CheckoutRequestID != "ws_CO_191220191020363925" {
		t.Errorf("checkout request id = %q", cb.CheckoutRequestID)
	}
	if cb.ResultCode != 0 {
		t.Errorf("result code = %d, want 0", cb.ResultCode)
	}
	receipt := env.receiptID()
	if receipt == nil || *receipt != "NLJ7RT61SV" {
		t.Errorf("receipt = %v, want NLJ7RT61SV", receipt)
	}
}

func TestStkCallbackEnvelopeNoReceipt(t *testing.T) {
	body := `{"Body":{"stkCallback":{"CheckoutRequestID":"ws_CO_1","ResultCode":1032,"ResultDesc":"Request cancelled by user"}}}`
	var env stkCallbackEnvelope
	if err := json.Unmarshal([]byte(body), &env); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if env.receiptID() != nil {
		t.Error("expected no receipt on a cancelled push")
	}
}

func TestPaymentCallbackHandlerBadBody(t *testing.T) {
	handler := paymentCallbackHandler(nil, nil, zerolog.Nop())

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/payments/callback", strings.NewReader("not json"))
	handler(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, the gateway must always get 200", rec.Code)
	}
	var ack callbackAck
	if err := json.NewDecoder(rec.Body).Decode(&ack); err != nil {
		t.Fatalf("decode ack: %v", err)
	}
	if ack.ResultCode != 1 {
		t.Errorf("ack result code = %d, want 1 for redelivery", ack.ResultCode)
	}
}
