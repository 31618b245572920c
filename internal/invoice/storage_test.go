package invoice

import (
	"os"
	"path/filepath"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("LocalArchive", func() {
	var (
		tmpDir  string
		archive Archive
	)

	BeforeEach(func() {
		tmpDir = GinkgoT().TempDir()
		var err error
		archive, err = NewLocalArchive(filepath.Join(tmpDir, "invoices"))
		Expect(err).NotTo(HaveOccurred())
	})

	Describe("Save", func() {
		var (
			name string
			data []byte
			ref  string
			err  error
		)

		BeforeEach(func() {
			name = "abc.pdf"
			data = []byte("%PDF-1.7")
		})

		JustBeforeEach(func() {
			ref, err = archive.Save(name, data)
		})

		When("saving succeeds", func() {
			It("should not return an error", func() {
				Expect(err).NotTo(HaveOccurred())
			})

			It("should return the name as reference", func() {
				Expect(ref).To(Equal(name))
			})

			It("should save the file to disk", func() {
				Expect(filepath.Join(tmpDir, "invoices", name)).To(BeAnExistingFile())
			})
		})

		When("the file already exists", func() {
			BeforeEach(func() {
				Expect(os.WriteFile(filepath.Join(tmpDir, "invoices", name), []byte("original"), 0644)).To(Succeed())
			})

			It("should not overwrite it", func() {
				Expect(err).To(HaveOccurred())
				content, readErr := os.ReadFile(filepath.Join(tmpDir, "invoices", name))
				Expect(readErr).NotTo(HaveOccurred())
				Expect(string(content)).To(Equal("original"))
			})
		})

		When("the name tries to escape the archive", func() {
			BeforeEach(func() {
				name = "../escape.pdf"
			})

			It("should return an error", func() {
				Expect(err).To(MatchError(ContainSubstring("invalid archive reference")))
				Expect(filepath.Join(tmpDir, "escape.pdf")).NotTo(BeAnExistingFile())
			})
		})
	})

	Describe("Get", func() {
		When("the file exists", func() {
			It("should return its content", func() {
				_, err := archive.Save("abc.png", []byte("png bytes"))
				Expect(err).NotTo(HaveOccurred())

				data, err := archive.Get("abc.png")
				Expect(err).NotTo(HaveOccurred())
				Expect(data).To(Equal([]byte("png bytes")))
			})
		})

		When("the file does not exist", func() {
			It("should return an error", func() {
				_, err := archive.Get("missing.png")
				Expect(err).To(HaveOccurred())
			})
		})
	})

	Describe("Delete", func() {
		When("the file exists", func() {
			It("should remove it", func() {
				_, err := archive.Save("abc.png", []byte("png bytes"))
				Expect(err).NotTo(HaveOccurred())

				Expect(archive.Delete("abc.png")).To(Succeed())
				Expect(filepath.Join(tmpDir, "invoices", "abc.png")).NotTo(BeAnExistingFile())
			})
		})

		When("the file does not exist", func() {
			It("should return an error", func() {
				Expect(archive.Delete("missing.png")).NotTo(Succeed())
			})
		})
	})
})
