package types

import (
	"testing"
)

func TestAssetType_IsShareBased(t *testing.T) {
	tests := []struct {
		assetType AssetType
		want      bool
	}{
		{AssetIBT, true},
		{AssetLPVaultShare, true},
		{AssetPT, false},
		{AssetYT, false},
		{AssetLP, false},
		{AssetUnderlying, false},
		{AssetYield, false},
		{AssetUnknown, false},
	}

	for _, tt := range tests {
		t.Run(string(tt.assetType), func(t *testing.T) {
			if got := tt.assetType.IsShareBased(); got != tt.want {
				t.Errorf("IsShareBased() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestTemplate_Valid(t *testing.T) {
	for _, tmpl := range []Template{TemplateFactory, TemplateFuture, TemplateToken, TemplatePool, TemplateLPVault, TemplateFeedRegistry, TemplatePriceFeed} {
		if !tmpl.Valid() {
			t.Errorf("Template %q should be valid", tmpl)
		}
	}
	if Template("registry").Valid() {
		t.Error("unknown template reported as valid")
	}
}
