package promote

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"

	"github.com/n2nstreams/saasfactory-cloud/internal/domain/promotion"
	"github.com/n2nstreams/saasfactory-cloud/pkg/testhelper"
)

func TestVerify_AllChecksPass(t *testing.T) {
	v := NewVerifier(&testhelper.MockProbe{}, testConfig(), zap.NewNop())

	assert.NoError(t, v.Verify(context.Background(), "acme-corp"))
}

func TestVerify_CheckFailures(t *testing.T) {
	tests := []struct {
		name   string
		probe  *testhelper.MockProbe
		detail string
	}{
		{"read fails", &testhelper.MockProbe{FailRead: true}, "tenant_read"},
		{"write-read fails", &testhelper.MockProbe{FailWriteRead: true}, "tenant_write_read"},
		{"isolation fails", &testhelper.MockProbe{FailIsolation: true}, "cross_tenant_isolation"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := NewVerifier(tt.probe, testConfig(), zap.NewNop())

			err := v.Verify(context.Background(), "acme-corp")

			assert.Error(t, err)
			assert.Equal(t, promotion.ReasonVerificationFailed, promotion.ReasonOf(err))
			assert.Contains(t, err.Error(), tt.detail)
		})
	}
}
