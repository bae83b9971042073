package awsvault

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/secretsmanager/types"
	ssmtypes "github.com/aws/aws-sdk-go-v2/service/ssm/types"
	"github.com/aws/smithy-go"
	"github.com/stretchr/testify/assert"

	"github.com/systmms/credbox/pkg/vault"
)

func TestStatusOf(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		err  error
		want vault.Status
	}{
		{name: "secret_not_found", err: &types.ResourceNotFoundException{Message: aws.String("x")}, want: vault.StatusItemNotFound},
		{name: "parameter_not_found", err: &ssmtypes.ParameterNotFound{}, want: vault.StatusItemNotFound},
		{name: "exists", err: &types.ResourceExistsException{}, want: vault.StatusDuplicateItem},
		{name: "denied", err: &smithy.GenericAPIError{Code: "AccessDeniedException"}, want: vault.StatusAuthFailed},
		{name: "expired", err: &smithy.GenericAPIError{Code: "ExpiredTokenException"}, want: vault.StatusAuthFailed},
		{name: "throttled", err: &smithy.GenericAPIError{Code: "ThrottlingException"}, want: vault.StatusNotAvailable},
		{name: "invalid", err: &smithy.GenericAPIError{Code: "InvalidParameterException"}, want: vault.StatusParam},
		{name: "decryption", err: &types.DecryptionFailure{}, want: vault.StatusDecode},
		{name: "other_api", err: &smithy.GenericAPIError{Code: "Teapot"}, want: vault.StatusIO},
		{name: "wrapped", err: &smithy.OperationError{ServiceID: "SSM", OperationName: "GetParameter", Err: &ssmtypes.ParameterNotFound{}}, want: vault.StatusItemNotFound},
		{name: "canceled", err: context.Canceled, want: vault.StatusNotAvailable},
		{name: "plain", err: errors.New("dial tcp: refused"), want: vault.StatusIO},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, statusOf(tt.err))
		})
	}
}

func TestItemNameRoundTrip(t *testing.T) {
	t.Parallel()

	name := itemName("credbox/", "3:app.user.email.Zoë")
	assert.Regexp(t, `^credbox/[0-9a-f]+$`, name)

	key, ok := keyOf("credbox/", name)
	assert.True(t, ok)
	assert.Equal(t, "3:app.user.email.Zoë", key)

	_, ok = keyOf("credbox/", "other/"+name)
	assert.False(t, ok)
	_, ok = keyOf("credbox/", "credbox/zz")
	assert.False(t, ok)

	// Key prefixes stay name prefixes.
	assert.True(t, strings.HasPrefix(itemName("p/", "3:app.user.x"), itemName("p/", "3:app.user.")))
}

func TestParseSettingsDefaults(t *testing.T) {
	t.Parallel()

	s := parseSettings(map[string]interface{}{"region": "eu-west-1", "role_arn": "arn:aws:iam::1:role/x"}, DefaultSecretNamePrefix)
	assert.Equal(t, "eu-west-1", s.Region)
	assert.Equal(t, DefaultSecretNamePrefix, s.NamePrefix)
	assert.Equal(t, "arn:aws:iam::1:role/x", s.RoleARN)

	s = parseSettings(nil, DefaultParameterPrefix)
	assert.Equal(t, DefaultRegion, s.Region)
	assert.Equal(t, DefaultParameterPrefix, s.NamePrefix)
}
