package grpcx_test

import (
	"context"

	. "github.com/dogmatiq/jobpack/internal/x/grpcx"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"google.golang.org/grpc/metadata"
)

var _ = Describe("func CheckSecret()", func() {
	It("accepts the secret", func() {
		ctx := metadata.NewIncomingContext(
			context.Background(),
			metadata.Pairs(SecretMetadataKey, "<secret>"),
		)

		Expect(CheckSecret(ctx, "<secret>")).To(Succeed())
	})

	It("rejects a different secret", func() {
		ctx := metadata.NewIncomingContext(
			context.Background(),
			metadata.Pairs(SecretMetadataKey, "<other>"),
		)

		err := CheckSecret(ctx, "<secret>")
		Expect(IsUnauthenticated(err)).To(BeTrue())
	})

	It("rejects a missing secret", func() {
		err := CheckSecret(context.Background(), "<secret>")
		Expect(IsUnauthenticated(err)).To(BeTrue())
	})

	It("rejects more than one secret", func() {
		ctx := metadata.NewIncomingContext(
			context.Background(),
			metadata.Pairs(
				SecretMetadataKey, "<secret>",
				SecretMetadataKey, "<secret>",
			),
		)

		err := CheckSecret(ctx, "<secret>")
		Expect(IsUnauthenticated(err)).To(BeTrue())
	})
})

var _ = Describe("type SecretCredentials", func() {
	It("attaches the secret to the request metadata", func() {
		md, err := SecretCredentials("<secret>").GetRequestMetadata(context.Background())
		Expect(err).ShouldNot(HaveOccurred())
		Expect(md).To(Equal(map[string]string{SecretMetadataKey: "<secret>"}))
	})
})
