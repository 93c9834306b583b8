package winternitz

import (
	"testing"

	"github.com/ArkLabsHQ/bitvm2-splitter/pkg/script"
	"github.com/ArkLabsHQ/bitvm2-splitter/pkg/vm"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

// decodeScriptNum mirrors pkg/vm's unexported minimal scriptnum decoding, so
// these tests can interpret raw stack bytes returned by vm.Engine.
func decodeScriptNum(b []byte) int64 {
	if len(b) == 0 {
		return 0
	}
	var result int64
	for i, v := range b {
		result |= int64(v) << uint(8*i)
	}
	if b[len(b)-1]&0x80 != 0 {
		result &^= int64(0x80) << uint(8*(len(b)-1))
		return -result
	}
	return result
}

func TestEncodeDecodeMessageRoundTrip(t *testing.T) {
	const msg = 0x2FEEDDCC
	m, err := EncodeMessage(msg)
	require.NoError(t, err)
	require.Equal(t, uint32(msg), m.DecodeMessage())
}

func TestSignVerifyRoundTrip(t *testing.T) {
	sk, err := NewSecretKey()
	require.NoError(t, err)
	pk := sk.PublicKey()

	const msg = 0x2FEEDDCC
	sig, err := sk.Sign(msg)
	require.NoError(t, err)

	ok, err := pk.Verify(msg, sig)
	require.NoError(t, err)
	require.True(t, ok)
}

func TestVerifyRejectsWrongMessage(t *testing.T) {
	sk, err := NewSecretKey()
	require.NoError(t, err)
	pk := sk.PublicKey()

	sig, err := sk.Sign(42)
	require.NoError(t, err)

	ok, err := pk.Verify(43, sig)
	require.NoError(t, err)
	require.False(t, ok)
}

func TestChecksumWithinRange(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		msg := rapid.Uint32().Draw(rt, "msg")
		m, err := EncodeMessage(msg)
		require.NoError(rt, err)
		checksum := int(m.Digits[N0])<<0 | int(m.Digits[N0+1])<<BitsPerDigit
		require.GreaterOrEqual(rt, checksum, 0)
		require.LessOrEqual(rt, checksum, V)
	})
}

func TestSignVerifyRoundTripProperty(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		msg := rapid.Uint32().Draw(rt, "msg")
		sk, err := NewSecretKey()
		require.NoError(rt, err)
		pk := sk.PublicKey()
		sig, err := sk.Sign(msg)
		require.NoError(rt, err)
		ok, err := pk.Verify(msg, sig)
		require.NoError(rt, err)
		require.True(rt, ok)
	})
}

func TestCheckSigVerifyScriptBuildsForEveryDigit(t *testing.T) {
	sk, err := NewSecretKey()
	require.NoError(t, err)
	s, err := CheckSigVerifyScript(sk.PublicKey())
	require.NoError(t, err)
	require.NotZero(t, s.Len())
}

func TestRecoveryScriptBuilds(t *testing.T) {
	s, err := RecoveryScript()
	require.NoError(t, err)
	require.NotZero(t, s.Len())
}

// TestCheckSigVerifyThenRecoveryRoundTripsInVM runs a real signature's
// witness through CheckSigVerifyScript and RecoveryScript inside vm.Engine,
// proving the two scripts agree on stack layout end to end, not just that
// they each build.
func TestCheckSigVerifyThenRecoveryRoundTripsInVM(t *testing.T) {
	sk, err := NewSecretKey()
	require.NoError(t, err)
	pk := sk.PublicKey()

	const msg = 0x2FEEDDCC
	sig, err := sk.Sign(msg)
	require.NoError(t, err)

	witness, err := sig.ToWitnessScript()
	require.NoError(t, err)
	verify, err := CheckSigVerifyScript(pk)
	require.NoError(t, err)
	recover, err := RecoveryScript()
	require.NoError(t, err)

	prog := script.Script{}
	prog.Instructions = append(prog.Instructions, witness.Instructions...)
	prog.Instructions = append(prog.Instructions, verify.Instructions...)
	prog.Instructions = append(prog.Instructions, recover.Instructions...)

	e := vm.New(prog, nil)
	require.NoError(t, e.Execute())

	stack := e.MainStack()
	require.Len(t, stack, 1)
	require.Equal(t, int64(msg), decodeScriptNum(stack[0]))
}

// TestCheckSigVerifyScriptRejectsForgedDigit proves a tampered witness
// element (a digit claimed without rehashing) fails in-VM verification
// rather than silently recovering a wrong or unrelated message.
func TestCheckSigVerifyScriptRejectsForgedDigit(t *testing.T) {
	sk, err := NewSecretKey()
	require.NoError(t, err)
	pk := sk.PublicKey()

	const msg = 0x2FEEDDCC
	sig, err := sk.Sign(msg)
	require.NoError(t, err)

	// Forge: claim one extra hash application without rehashing, so the
	// revealed value no longer chains to the public key tip at the
	// claimed depth.
	sig.Elements[0].Times++

	witness, err := sig.ToWitnessScript()
	require.NoError(t, err)
	verify, err := CheckSigVerifyScript(pk)
	require.NoError(t, err)

	prog := script.Script{}
	prog.Instructions = append(prog.Instructions, witness.Instructions...)
	prog.Instructions = append(prog.Instructions, verify.Instructions...)

	e := vm.New(prog, nil)
	require.Error(t, e.Execute())
}
