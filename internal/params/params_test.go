package params

import (
	"testing"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yairfalse/ec2launch/pkg/instance"
)

func newFlagSet() *pflag.FlagSet {
	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	fs.StringP(KeyGroupID, "g", "", "")
	fs.StringP(KeyAMIID, "a", "", "")
	fs.StringP(KeyKeyPairName, "k", "", "")
	fs.StringP(KeySubnetID, "s", "", "")
	return fs
}

func TestFromFlags(t *testing.T) {
	fs := newFlagSet()
	require.NoError(t, fs.Parse([]string{"-g", "sg-abc123", "-a", "ami-xyz789", "--keypair-name", " mykey "}))

	v := FromFlags(fs)

	got, ok := v.Get(KeyGroupID)
	assert.True(t, ok)
	assert.Equal(t, "sg-abc123", got)

	got, _ = v.Get(KeyKeyPairName)
	assert.Equal(t, "mykey", got)

	_, ok = v.Get(KeySubnetID)
	assert.False(t, ok)
}

func TestFromFlags_UndefinedFlags(t *testing.T) {
	fs := pflag.NewFlagSet("empty", pflag.ContinueOnError)
	v := FromFlags(fs)
	for _, key := range []string{KeyGroupID, KeyAMIID, KeyKeyPairName, KeySubnetID} {
		_, ok := v.Get(key)
		assert.False(t, ok, key)
	}
}

func TestNewValues_Copies(t *testing.T) {
	m := map[string]string{KeyGroupID: "sg-1"}
	v := NewValues(m)
	m[KeyGroupID] = "sg-2"

	got, _ := v.Get(KeyGroupID)
	assert.Equal(t, "sg-1", got)
}

func TestValidate_Flat(t *testing.T) {
	p, err := Validate(NewValues(map[string]string{
		KeyGroupID:     "sg-abc123",
		KeyAMIID:       "ami-xyz789",
		KeyKeyPairName: "mykey",
	}))

	require.NoError(t, err)
	assert.Equal(t, "sg-abc123", p.SecurityGroupID)
	assert.Equal(t, "ami-xyz789", p.ImageID)
	assert.Equal(t, "mykey", p.KeyPairName)
	assert.False(t, p.HasSubnet())
}

func TestValidate_Subnet(t *testing.T) {
	p, err := Validate(NewValues(map[string]string{
		KeyGroupID:     "sg-abc123",
		KeyAMIID:       "ami-xyz789",
		KeyKeyPairName: "mykey",
		KeySubnetID:    "subnet-111",
	}))

	require.NoError(t, err)
	assert.True(t, p.HasSubnet())
	assert.Equal(t, "subnet-111", p.SubnetID)
}

func TestValidate_Failures(t *testing.T) {
	tests := []struct {
		name      string
		values    map[string]string
		wantFlags []string
		contains  string
	}{
		{
			name:      "missing keypair",
			values:    map[string]string{KeyGroupID: "sg-abc123", KeyAMIID: "ami-xyz789"},
			wantFlags: []string{KeyKeyPairName},
			contains:  "--keypair-name is required",
		},
		{
			name:      "nothing set",
			values:    map[string]string{},
			wantFlags: []string{KeyGroupID, KeyAMIID, KeyKeyPairName},
		},
		{
			name:      "wrong group prefix",
			values:    map[string]string{KeyGroupID: "abc123", KeyAMIID: "ami-xyz789", KeyKeyPairName: "k"},
			wantFlags: []string{KeyGroupID},
			contains:  `must start with "sg-"`,
		},
		{
			name:      "wrong ami prefix",
			values:    map[string]string{KeyGroupID: "sg-abc123", KeyAMIID: "img-1", KeyKeyPairName: "k"},
			wantFlags: []string{KeyAMIID},
		},
		{
			name:      "bare prefix",
			values:    map[string]string{KeyGroupID: "sg-", KeyAMIID: "ami-xyz789", KeyKeyPairName: "k"},
			wantFlags: []string{KeyGroupID},
			contains:  "must carry an id",
		},
		{
			name:      "malformed subnet",
			values:    map[string]string{KeyGroupID: "sg-abc123", KeyAMIID: "ami-xyz789", KeyKeyPairName: "k", KeySubnetID: "net-1"},
			wantFlags: []string{KeySubnetID},
			contains:  `"subnet-"`,
		},
		{
			name:      "whitespace keypair",
			values:    map[string]string{KeyGroupID: "sg-abc123", KeyAMIID: "ami-xyz789", KeyKeyPairName: "   "},
			wantFlags: []string{KeyKeyPairName},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Validate(NewValues(tt.values))
			require.Error(t, err)

			var verr *ValidationError
			require.ErrorAs(t, err, &verr)

			var flags []string
			for _, p := range verr.Problems {
				flags = append(flags, p.Flag)
			}
			assert.Equal(t, tt.wantFlags, flags)

			if tt.contains != "" {
				assert.Contains(t, err.Error(), tt.contains)
			}
			assert.NotEmpty(t, verr.Guidance())
		})
	}
}

func TestValidateInstanceIDs(t *testing.T) {
	handles, err := ValidateInstanceIDs([]string{"i-0abc", " i-0def "})
	require.NoError(t, err)
	assert.Equal(t, []instance.Handle{{InstanceID: "i-0abc"}, {InstanceID: "i-0def"}}, handles)
}

func TestValidateInstanceIDs_Invalid(t *testing.T) {
	tests := []struct {
		name     string
		ids      []string
		problems int
		contains string
	}{
		{"empty", nil, 1, "at least one"},
		{"bare prefix", []string{"i-"}, 1, `must start with "i-"`},
		{"wrong prefix", []string{"i-1", "vol-2"}, 1, "vol-2"},
		{"duplicate", []string{"i-1", "i-1"}, 1, "given twice"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ValidateInstanceIDs(tt.ids)

			var verr *ValidationError
			require.ErrorAs(t, err, &verr)
			assert.Len(t, verr.Problems, tt.problems)
			assert.Contains(t, err.Error(), tt.contains)
			assert.Contains(t, verr.Guidance(), "wait")
		})
	}
}
