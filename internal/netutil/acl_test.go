package netutil

import (
	"net"
	"net/netip"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParsePrefixes(t *testing.T) {
	p, err := ParsePrefixes("192.168.1.0/255.255.255.0")
	require.NoError(t, err)
	assert.Equal(t, []netip.Prefix{netip.MustParsePrefix("192.168.1.0/24")}, p)

	p, err = ParsePrefixes("10.1.2.3/8")
	require.NoError(t, err)
	assert.Equal(t, "10.0.0.0/8", p[0].String())

	p, err = ParsePrefixes(" 10.0.0.10 ")
	require.NoError(t, err)
	assert.Equal(t, "10.0.0.10/32", p[0].String())

	p, err = ParsePrefixes("Internal")
	require.NoError(t, err)
	assert.Len(t, p, 4)

	_, err = ParsePrefixes("10.0.0.0/255.0.255.0")
	assert.Error(t, err)
	_, err = ParsePrefixes("10.0.0.0/33")
	assert.Error(t, err)
	_, err = ParsePrefixes("phone.example")
	assert.Error(t, err)
}

func TestLastMatchWins(t *testing.T) {
	var acl ACL
	var err error
	acl, err = acl.Add(false, "0.0.0.0/0.0.0.0")
	require.NoError(t, err)
	acl, err = acl.Add(true, "internal")
	require.NoError(t, err)

	assert.True(t, acl.Allows(netip.MustParseAddr("10.0.0.10")))
	assert.True(t, acl.Allows(netip.MustParseAddr("::ffff:192.168.5.1")))
	assert.False(t, acl.Allows(netip.MustParseAddr("8.8.8.8")))

	assert.True(t, ACL(nil).Allows(netip.MustParseAddr("8.8.8.8")))
}

func TestAddDoesNotAlias(t *testing.T) {
	base, err := ACL(nil).Add(true, "10.0.0.0/8")
	require.NoError(t, err)
	a, _ := base.Add(false, "10.0.0.1")
	b, _ := base.Add(true, "10.0.0.1")
	assert.False(t, a.Equal(b))
	assert.Len(t, base, 1)

	same, _ := ACL(nil).Add(true, "10.0.0.0/255.0.0.0")
	assert.True(t, base.Equal(same))
}

func TestContains(t *testing.T) {
	acl, err := ACL(nil).Add(false, "172.16.0.0/12")
	require.NoError(t, err)
	assert.True(t, acl.Contains(netip.MustParseAddr("172.20.1.1")))
	assert.False(t, acl.Contains(netip.MustParseAddr("172.32.1.1")))
}

func TestMarkIgnoresPipes(t *testing.T) {
	a, b := net.Pipe()
	defer a.Close()
	defer b.Close()
	assert.NoError(t, Mark(a, QoS{TOS: 0x68, COS: 4}))
}

func TestMarkTCP(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer ln.Close()
	c, err := net.Dial("tcp", ln.Addr().String())
	require.NoError(t, err)
	defer c.Close()
	assert.NoError(t, Mark(c, QoS{TOS: 0x68, COS: 4}))
}
