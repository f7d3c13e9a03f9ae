package signerverifier

import (
	"context"
	"encoding/hex"
	"fmt"

	kms "cloud.google.com/go/kms/apiv1"
	kmspb "cloud.google.com/go/kms/apiv1/kmspb"
	"github.com/Azure/azure-sdk-for-go/sdk/azidentity"
	"github.com/Azure/azure-sdk-for-go/sdk/security/keyvault/azkeys"

	"github.com/jku/repository-playground/internal/errkind"
	"github.com/jku/repository-playground/internal/tufmeta"
)

func init() {
	register("gcpkms", newGCPKMSBackend)
	register("azurekms", newAzureKMSBackend)
}

// gcpKMSBackend signs with a GCP KMS asymmetric signing key. It is a thin
// adapter over cloud.google.com/go/kms: key management, rotation, and IAM
// all stay the cloud provider's concern.
type gcpKMSBackend struct {
	client    *kms.KeyManagementClient
	resource  string // cryptoKeyVersion resource name
	publicKey *tufmeta.Key
}

// newGCPKMSBackend resolves a gcpkms://<cryptoKeyVersion> URI into a signing
// backend. GCP identity (ADC / GCP_* env vars per spec.md §6) is resolved
// implicitly by the client library.
func newGCPKMSBackend(ctx context.Context, uriOrRef string, _ BackendConfig) (SignerBackend, error) {
	client, err := kms.NewKeyManagementClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", errkind.SignerUnavailable, err)
	}

	resource := uriOrRef[len("gcpkms://"):]
	resp, err := client.GetPublicKey(ctx, &kmspb.GetPublicKeyRequest{Name: resource})
	if err != nil {
		return nil, fmt.Errorf("%w: %s", errkind.SignerUnavailable, err)
	}

	key := &tufmeta.Key{
		KeyType: tufmeta.SchemeECDSA,
		Scheme:  tufmeta.SchemeECDSA,
		KeyVal:  tufmeta.KeyVal{Public: resp.GetPem()},
	}
	if err := key.SetOnlineURI(uriOrRef); err != nil {
		return nil, err
	}
	keyID, err := tufmeta.ComputeKeyID(key)
	if err != nil {
		return nil, err
	}
	key.KeyID = keyID

	return &gcpKMSBackend{client: client, resource: resource, publicKey: key}, nil
}

func (b *gcpKMSBackend) PublicKey(_ context.Context) (*tufmeta.Key, error) {
	return b.publicKey, nil
}

func (b *gcpKMSBackend) Sign(ctx context.Context, data []byte) (string, error) {
	resp, err := b.client.AsymmetricSign(ctx, &kmspb.AsymmetricSignRequest{
		Name: b.resource,
		Data: data,
	})
	if err != nil {
		return "", fmt.Errorf("%w: %s", errkind.SignatureRejected, err)
	}
	return hex.EncodeToString(resp.GetSignature()), nil
}

// azureKMSBackend signs with an Azure Key Vault key. Thin adapter over
// azidentity (credential resolution from AZURE_* env vars per spec.md §6)
// and azkeys (the signing RPC itself).
type azureKMSBackend struct {
	client    *azkeys.Client
	keyName   string
	publicKey *tufmeta.Key
}

func newAzureKMSBackend(ctx context.Context, uriOrRef string, _ BackendConfig) (SignerBackend, error) {
	vaultURL, keyName := splitAzureKMSURI(uriOrRef)

	cred, err := azidentity.NewDefaultAzureCredential(nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", errkind.SignerUnavailable, err)
	}
	client, err := azkeys.NewClient(vaultURL, cred, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", errkind.SignerUnavailable, err)
	}

	resp, err := client.GetKey(ctx, keyName, "", nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", errkind.SignerUnavailable, err)
	}

	key := &tufmeta.Key{
		KeyType: tufmeta.SchemeECDSA,
		Scheme:  tufmeta.SchemeECDSA,
		KeyVal:  tufmeta.KeyVal{Public: fmt.Sprintf("%x", resp.Key.X)},
	}
	if err := key.SetOnlineURI(uriOrRef); err != nil {
		return nil, err
	}
	keyID, err := tufmeta.ComputeKeyID(key)
	if err != nil {
		return nil, err
	}
	key.KeyID = keyID

	return &azureKMSBackend{client: client, keyName: keyName, publicKey: key}, nil
}

func (b *azureKMSBackend) PublicKey(_ context.Context) (*tufmeta.Key, error) {
	return b.publicKey, nil
}

func (b *azureKMSBackend) Sign(ctx context.Context, data []byte) (string, error) {
	alg := azkeys.JSONWebKeySignatureAlgorithmES256
	resp, err := b.client.Sign(ctx, b.keyName, "", azkeys.SignParameters{
		Algorithm: &alg,
		Value:     data,
	}, nil)
	if err != nil {
		return "", fmt.Errorf("%w: %s", errkind.SignatureRejected, err)
	}
	return hex.EncodeToString(resp.Result), nil
}

func splitAzureKMSURI(uriOrRef string) (vaultURL, keyName string) {
	rest := uriOrRef[len("azurekms://"):]
	for i := len(rest) - 1; i >= 0; i-- {
		if rest[i] == '/' {
			return "https://" + rest[:i], rest[i+1:]
		}
	}
	return "https://" + rest, ""
}
